package grid

import (
	"fmt"
	"strings"
)

// Grid is a dense rows×cols occupancy grid stored row-major.
type Grid struct {
	rows  int
	cols  int
	cells []Cell
}

// New returns a grid with every cell set to fill.
func New(rows, cols int, fill Cell) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	g := &Grid{rows: rows, cols: cols, cells: make([]Cell, rows*cols)}
	if fill != Unknown {
		for i := range g.cells {
			g.cells[i] = fill
		}
	}
	return g
}

// FromCells wraps a row-major cell slice. len(cells) must equal rows*cols.
func FromCells(rows, cols int, cells []Cell) (*Grid, error) {
	if rows < 0 || cols < 0 || len(cells) != rows*cols {
		return nil, fmt.Errorf("grid: %d cells for %dx%d", len(cells), rows, cols)
	}
	for i, c := range cells {
		if !c.Valid() {
			return nil, fmt.Errorf("grid: invalid cell %d at index %d", c, i)
		}
	}
	out := make([]Cell, len(cells))
	copy(out, cells)
	return &Grid{rows: rows, cols: cols, cells: out}, nil
}

// Parse reads the text form produced by Render: one line per row, one rune
// per cell. Blank lines are ignored.
func Parse(s string) (*Grid, error) {
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("grid: empty input")
	}
	cols := len([]rune(lines[0]))
	g := New(len(lines), cols, Unknown)
	for r, ln := range lines {
		rs := []rune(ln)
		if len(rs) != cols {
			return nil, fmt.Errorf("grid: row %d has %d cells want %d", r, len(rs), cols)
		}
		for c, ch := range rs {
			cell, err := ParseRune(ch)
			if err != nil {
				return nil, fmt.Errorf("grid: row %d col %d: %w", r, c, err)
			}
			g.cells[r*cols+c] = cell
		}
	}
	return g, nil
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

func (g *Grid) InBounds(p Pos) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

// Index maps an in-bounds position to its row-major slot.
func (g *Grid) Index(p Pos) int { return p.Row*g.cols + p.Col }

// PosAt is the inverse of Index.
func (g *Grid) PosAt(i int) Pos { return Pos{Row: i / g.cols, Col: i % g.cols} }

// At returns the cell at p. Out-of-bounds reads return Obstacle so callers
// can treat the border as a wall.
func (g *Grid) At(p Pos) Cell {
	if !g.InBounds(p) {
		return Obstacle
	}
	return g.cells[g.Index(p)]
}

// Set writes c at p and reports whether p was in bounds.
func (g *Grid) Set(p Pos, c Cell) bool {
	if !g.InBounds(p) {
		return false
	}
	g.cells[g.Index(p)] = c
	return true
}

func (g *Grid) Clone() *Grid {
	out := &Grid{rows: g.rows, cols: g.cols, cells: make([]Cell, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}

// Cells returns a copy of the row-major cell slice.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	copy(out, g.cells)
	return out
}

func (g *Grid) Count(c Cell) int {
	n := 0
	for _, v := range g.cells {
		if v == c {
			n++
		}
	}
	return n
}

// Find returns the first position holding c in row-major order.
func (g *Grid) Find(c Cell) (Pos, bool) {
	for i, v := range g.cells {
		if v == c {
			return g.PosAt(i), true
		}
	}
	return Pos{}, false
}

func (g *Grid) Equal(o *Grid) bool {
	if g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// Render returns the text form: one line per row.
func (g *Grid) Render() string {
	var b strings.Builder
	b.Grow(g.rows * (g.cols + 1))
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			b.WriteRune(g.cells[r*g.cols+c].Rune())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// AnnotatePath returns a copy of g with visited Free cells marked Path.
// Start and Goal keep their own markers.
func AnnotatePath(g *Grid, visited []Pos) *Grid {
	out := g.Clone()
	for _, p := range visited {
		if out.At(p) == Free {
			out.Set(p, Path)
		}
	}
	return out
}
