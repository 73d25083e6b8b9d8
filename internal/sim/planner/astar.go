// Package planner finds shortest 4-connected paths on a partially known
// occupancy grid with A*.
//
// Only Free, Start and Goal cells are traversable; Unknown and Obstacle
// cells are walls. Moves cost 1 and the heuristic is Manhattan distance,
// which is consistent on this graph, so every node is finalised exactly
// once, the first time it is popped.
//
// Ties are broken deterministically: lowest f first, then highest g (the
// node that has travelled further, hence is nearer the goal), then the
// order in which entries were pushed. Neighbours are expanded up, down,
// left, right. Identical inputs therefore always produce identical paths.
package planner

import (
	"container/heap"

	"gridscout.ai/internal/sim/grid"
)

// Map is the read side of an occupancy grid. *grid.Grid and *belief.Map
// both satisfy it.
type Map interface {
	Rows() int
	Cols() int
	At(p grid.Pos) grid.Cell
}

type Result struct {
	// Path runs from start to goal inclusive; nil when the goal is not
	// reachable through known traversable cells.
	Path []grid.Pos
	// Expanded counts nodes finalised during the search.
	Expanded int
}

// Plan returns the shortest path from start to goal, or nil.
func Plan(m Map, start, goal grid.Pos) []grid.Pos {
	return Search(m, start, goal).Path
}

// Search runs A* and reports the path together with search effort.
func Search(m Map, start, goal grid.Pos) Result {
	rows, cols := m.Rows(), m.Cols()
	inBounds := func(p grid.Pos) bool {
		return p.Row >= 0 && p.Row < rows && p.Col >= 0 && p.Col < cols
	}
	if !inBounds(start) || !inBounds(goal) {
		return Result{}
	}
	if !m.At(goal).Traversable() {
		return Result{}
	}
	if start == goal {
		return Result{Path: []grid.Pos{start}, Expanded: 1}
	}

	n := rows * cols
	index := func(p grid.Pos) int { return p.Row*cols + p.Col }
	posAt := func(i int) grid.Pos { return grid.Pos{Row: i / cols, Col: i % cols} }

	best := make([]int, n)
	prev := make([]int, n)
	closed := make([]bool, n)
	for i := range best {
		best[i] = -1
		prev[i] = -1
	}

	var seq uint64
	open := &frontier{}
	si := index(start)
	best[si] = 0
	heap.Push(open, entry{f: start.Manhattan(goal), g: 0, seq: seq, idx: si})
	seq++

	gi := index(goal)
	expanded := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(entry)
		if closed[cur.idx] {
			continue
		}
		closed[cur.idx] = true
		expanded++

		if cur.idx == gi {
			return Result{Path: reconstruct(prev, si, gi, posAt), Expanded: expanded}
		}

		p := posAt(cur.idx)
		for _, d := range grid.Dirs {
			np := p.Add(d)
			if !inBounds(np) {
				continue
			}
			ni := index(np)
			if closed[ni] || !m.At(np).Traversable() {
				continue
			}
			ng := cur.g + 1
			if best[ni] >= 0 && ng >= best[ni] {
				continue
			}
			best[ni] = ng
			prev[ni] = cur.idx
			heap.Push(open, entry{f: ng + np.Manhattan(goal), g: ng, seq: seq, idx: ni})
			seq++
		}
	}
	return Result{Expanded: expanded}
}

func reconstruct(prev []int, si, gi int, posAt func(int) grid.Pos) []grid.Pos {
	var rev []grid.Pos
	for i := gi; i != -1; i = prev[i] {
		rev = append(rev, posAt(i))
		if i == si {
			break
		}
	}
	out := make([]grid.Pos, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

type entry struct {
	f   int
	g   int
	seq uint64
	idx int
}

type frontier []entry

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.g != b.g {
		return a.g > b.g
	}
	return a.seq < b.seq
}

func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontier) Push(x any) { *q = append(*q, x.(entry)) }

func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
