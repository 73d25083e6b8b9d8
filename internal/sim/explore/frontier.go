package explore

import (
	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/planner"
)

// frontierTarget picks the known traversable cell reachable from pos that
// borders unknown space and lies closest to goal (Manhattan). Ties go to the
// nearer cell by walking distance, then to the smaller row, then column.
// pos itself is never chosen.
func frontierTarget(m planner.Map, pos, goal grid.Pos) (grid.Pos, bool) {
	rows, cols := m.Rows(), m.Cols()
	inBounds := func(p grid.Pos) bool {
		return p.Row >= 0 && p.Row < rows && p.Col >= 0 && p.Col < cols
	}
	dist := make([]int, rows*cols)
	for i := range dist {
		dist[i] = -1
	}
	idx := func(p grid.Pos) int { return p.Row*cols + p.Col }

	dist[idx(pos)] = 0
	queue := []grid.Pos{pos}

	var (
		best     grid.Pos
		bestH    int
		bestDist int
		found    bool
	)
	better := func(p grid.Pos, h, d int) bool {
		if !found {
			return true
		}
		if h != bestH {
			return h < bestH
		}
		if d != bestDist {
			return d < bestDist
		}
		if p.Row != best.Row {
			return p.Row < best.Row
		}
		return p.Col < best.Col
	}

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		d := dist[idx(p)]
		if p != pos && bordersUnknown(m, p, inBounds) {
			if h := p.Manhattan(goal); better(p, h, d) {
				best, bestH, bestDist, found = p, h, d, true
			}
		}
		for _, dir := range grid.Dirs {
			np := p.Add(dir)
			if !inBounds(np) || dist[idx(np)] >= 0 || !m.At(np).Traversable() {
				continue
			}
			dist[idx(np)] = d + 1
			queue = append(queue, np)
		}
	}
	return best, found
}

func bordersUnknown(m planner.Map, p grid.Pos, inBounds func(grid.Pos) bool) bool {
	for _, d := range grid.Dirs {
		np := p.Add(d)
		if inBounds(np) && m.At(np) == grid.Unknown {
			return true
		}
	}
	return false
}
