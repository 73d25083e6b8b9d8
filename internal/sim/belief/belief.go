// Package belief holds the agent's internal map and the first-write-wins
// fusion rule.
package belief

import (
	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/sensor"
)

// Map is the agent's knowledge of the world. A cell moves from Unknown to a
// known state once and is never rewritten.
type Map struct {
	g     *grid.Grid
	known int
}

func New(rows, cols int) *Map {
	return &Map{g: grid.New(rows, cols, grid.Unknown)}
}

// Fuse merges a reading and returns the number of newly learned cells.
// Already-known cells are left untouched, so fusing the same reading twice
// is a no-op the second time.
func (m *Map) Fuse(rd sensor.Reading) int {
	learned := 0
	for _, o := range rd {
		if !m.g.InBounds(o.Pos) || o.Cell == grid.Unknown {
			continue
		}
		if m.g.At(o.Pos) != grid.Unknown {
			continue
		}
		m.g.Set(o.Pos, o.Cell)
		learned++
	}
	m.known += learned
	return learned
}

func (m *Map) At(p grid.Pos) grid.Cell { return m.g.At(p) }
func (m *Map) Rows() int               { return m.g.Rows() }
func (m *Map) Cols() int               { return m.g.Cols() }

// Known is the number of observed cells.
func (m *Map) Known() int { return m.known }

// Grid exposes the backing grid read-only by cloning it.
func (m *Map) Grid() *grid.Grid { return m.g.Clone() }

// View returns the backing grid without copying. Callers must not write to
// it; the planner uses this on the hot path.
func (m *Map) View() *grid.Grid { return m.g }
