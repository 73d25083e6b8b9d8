// Package sensor models a square, occlusion-free range sensor over a
// ground-truth grid.
package sensor

import "gridscout.ai/internal/sim/grid"

type Observation struct {
	Pos  grid.Pos
	Cell grid.Cell
}

// Reading is the set of cells observed in one scan, row-major.
type Reading []Observation

// Scan reports the true state of every in-bounds cell within Chebyshev
// distance rng of pos. Obstacles do not block visibility.
func Scan(truth *grid.Grid, pos grid.Pos, rng int) Reading {
	if rng < 0 {
		return nil
	}
	r0, r1 := clip(pos.Row-rng, pos.Row+rng, truth.Rows())
	c0, c1 := clip(pos.Col-rng, pos.Col+rng, truth.Cols())
	if r0 > r1 || c0 > c1 {
		return nil
	}
	out := make(Reading, 0, (r1-r0+1)*(c1-c0+1))
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			p := grid.Pos{Row: r, Col: c}
			out = append(out, Observation{Pos: p, Cell: truth.At(p)})
		}
	}
	return out
}

// FootprintSize is the number of cells Scan returns for the same inputs.
func FootprintSize(rows, cols int, pos grid.Pos, rng int) int {
	if rng < 0 {
		return 0
	}
	r0, r1 := clip(pos.Row-rng, pos.Row+rng, rows)
	c0, c1 := clip(pos.Col-rng, pos.Col+rng, cols)
	if r0 > r1 || c0 > c1 {
		return 0
	}
	return (r1 - r0 + 1) * (c1 - c0 + 1)
}

func clip(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
