package belief

import (
	"testing"

	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/sensor"
)

func TestFuse_Idempotent(t *testing.T) {
	truth, _ := grid.Parse("S.#.\n.#..\n...G")
	rd := sensor.Scan(truth, grid.Pos{Row: 1, Col: 1}, 1)

	once := New(3, 4)
	if n := once.Fuse(rd); n != len(rd) {
		t.Fatalf("first fuse learned %d want %d", n, len(rd))
	}
	twice := New(3, 4)
	twice.Fuse(rd)
	if n := twice.Fuse(rd); n != 0 {
		t.Fatalf("second fuse learned %d want 0", n)
	}
	if !once.View().Equal(twice.View()) {
		t.Fatalf("fusing twice differs from once:\n%s\nvs\n%s", once.View().Render(), twice.View().Render())
	}
	if once.Known() != twice.Known() {
		t.Fatalf("known %d vs %d", once.Known(), twice.Known())
	}
}

func TestFuse_FirstWriteWins(t *testing.T) {
	m := New(2, 2)
	p := grid.Pos{Row: 0, Col: 1}
	m.Fuse(sensor.Reading{{Pos: p, Cell: grid.Free}})
	m.Fuse(sensor.Reading{{Pos: p, Cell: grid.Obstacle}})
	if got := m.At(p); got != grid.Free {
		t.Fatalf("cell=%v want FREE (first observation)", got)
	}
	if m.Known() != 1 {
		t.Fatalf("known=%d want 1", m.Known())
	}
}

func TestFuse_IgnoresUnknownAndOutOfBounds(t *testing.T) {
	m := New(2, 2)
	n := m.Fuse(sensor.Reading{
		{Pos: grid.Pos{Row: 5, Col: 5}, Cell: grid.Free},
		{Pos: grid.Pos{Row: 0, Col: 0}, Cell: grid.Unknown},
	})
	if n != 0 || m.Known() != 0 {
		t.Fatalf("learned=%d known=%d want 0/0", n, m.Known())
	}
}

func TestNew_AllUnknown(t *testing.T) {
	m := New(3, 5)
	if got := m.View().Count(grid.Unknown); got != 15 {
		t.Fatalf("unknown=%d want 15", got)
	}
	g := m.Grid()
	g.Set(grid.Pos{}, grid.Free)
	if m.At(grid.Pos{}) != grid.Unknown {
		t.Fatalf("Grid() must return a copy")
	}
}
