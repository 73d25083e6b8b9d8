package grid

// Reachable reports whether a 4-connected walk from start reaches goal
// without entering an Obstacle cell. Unknown cells count as open here; use
// it on fully known grids.
func Reachable(g *Grid, start, goal Pos) bool {
	if !g.InBounds(start) || !g.InBounds(goal) {
		return false
	}
	if g.At(start) == Obstacle || g.At(goal) == Obstacle {
		return false
	}
	visited := make([]bool, g.rows*g.cols)
	stack := make([]Pos, 0, 64)
	stack = append(stack, start)
	visited[g.Index(start)] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p == goal {
			return true
		}
		for _, d := range Dirs {
			np := p.Add(d)
			if !g.InBounds(np) {
				continue
			}
			i := g.Index(np)
			if visited[i] || g.cells[i] == Obstacle {
				continue
			}
			visited[i] = true
			stack = append(stack, np)
		}
	}
	return false
}

// Distance returns the shortest 4-connected step count from start to goal
// through cells accepted by pass, or -1. Breadth-first; independent of the
// A* planner so tests can cross-check it.
func Distance(g *Grid, start, goal Pos, pass func(Cell) bool) int {
	if !g.InBounds(start) || !g.InBounds(goal) || !pass(g.At(goal)) {
		return -1
	}
	dist := make([]int, g.rows*g.cols)
	for i := range dist {
		dist[i] = -1
	}
	dist[g.Index(start)] = 0
	queue := []Pos{start}
	for head := 0; head < len(queue); head++ {
		p := queue[head]
		if p == goal {
			return dist[g.Index(p)]
		}
		for _, d := range Dirs {
			np := p.Add(d)
			if !g.InBounds(np) {
				continue
			}
			i := g.Index(np)
			if dist[i] >= 0 || !pass(g.cells[i]) {
				continue
			}
			dist[i] = dist[g.Index(p)] + 1
			queue = append(queue, np)
		}
	}
	return -1
}
