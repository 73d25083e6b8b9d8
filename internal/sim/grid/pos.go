package grid

import (
	"fmt"

	"gridscout.ai/internal/sim/mathx"
)

type Pos struct {
	Row int
	Col int
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

func (p Pos) Add(d Pos) Pos { return Pos{Row: p.Row + d.Row, Col: p.Col + d.Col} }

// Manhattan is |Δrow| + |Δcol|.
func (p Pos) Manhattan(q Pos) int {
	return mathx.Manhattan(p.Row, p.Col, q.Row, q.Col)
}

// Adjacent reports whether q is one of p's 4-neighbors.
func (p Pos) Adjacent(q Pos) bool {
	return p.Manhattan(q) == 1
}

// Dirs is the fixed 4-neighbor order: up, down, left, right.
// Everything that walks neighbors uses this order for determinism.
var Dirs = [4]Pos{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}
