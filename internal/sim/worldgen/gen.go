// Package worldgen builds ground-truth grids that are guaranteed to connect
// the start corner to the goal corner.
package worldgen

import (
	"errors"
	"fmt"

	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/mathx"
)

// DefaultMaxAttempts bounds resampling when Params.MaxAttempts is zero.
const DefaultMaxAttempts = 1000

var ErrGeneration = errors.New("world generation failed")

// GenerationError reports that no reachable world was sampled within the
// attempt budget.
type GenerationError struct {
	Rows                int
	Cols                int
	ObstacleProbability float64
	Attempts            int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("worldgen: no reachable %dx%d world after %d attempts (obstacle_probability=%.3f)",
		e.Rows, e.Cols, e.Attempts, e.ObstacleProbability)
}

func (e *GenerationError) Unwrap() error { return ErrGeneration }

type Params struct {
	Rows                int
	Cols                int
	ObstacleProbability float64
	Seed                int64
	MaxAttempts         int
}

// World is an immutable ground truth plus its endpoints.
type World struct {
	Truth    *grid.Grid
	Start    grid.Pos
	Goal     grid.Pos
	Attempts int
}

// Generate samples Bernoulli(ObstacleProbability) obstacles per cell until
// the start corner (0,0) reaches the goal corner (rows-1, cols-1), or the
// attempt budget runs out. Draws depend only on (Seed, attempt, row, col).
func Generate(p Params) (World, error) {
	if p.Rows < 1 || p.Cols < 1 {
		return World{}, fmt.Errorf("worldgen: dimensions must be >= 1, got %dx%d", p.Rows, p.Cols)
	}
	if p.ObstacleProbability < 0 || p.ObstacleProbability >= 1 {
		return World{}, fmt.Errorf("worldgen: obstacle_probability must be in [0,1), got %v", p.ObstacleProbability)
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	start := grid.Pos{}
	goal := grid.Pos{Row: p.Rows - 1, Col: p.Cols - 1}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		g := Sample(p.Seed, attempt, p.Rows, p.Cols, p.ObstacleProbability)
		g.Set(start, grid.Start)
		// On a 1x1 grid the goal marker wins.
		g.Set(goal, grid.Goal)
		if grid.Reachable(g, start, goal) {
			return World{Truth: g, Start: start, Goal: goal, Attempts: attempt + 1}, nil
		}
	}
	return World{}, &GenerationError{
		Rows:                p.Rows,
		Cols:                p.Cols,
		ObstacleProbability: p.ObstacleProbability,
		Attempts:            maxAttempts,
	}
}

// Sample draws one Free/Obstacle grid without endpoint markers.
func Sample(seed int64, attempt, rows, cols int, prob float64) *grid.Grid {
	g := grid.New(rows, cols, grid.Free)
	if prob <= 0 {
		return g
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if mathx.Unit(mathx.Hash3(seed, attempt, r, c)) < prob {
				g.Set(grid.Pos{Row: r, Col: c}, grid.Obstacle)
			}
		}
	}
	return g
}
