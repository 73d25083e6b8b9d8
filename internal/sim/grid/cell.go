package grid

import "fmt"

// Cell is the discrete state of one grid square.
type Cell uint8

const (
	Unknown Cell = iota
	Free
	Obstacle
	Start
	Goal
	// Path marks cells on a finished trajectory. Display only.
	Path
)

func (c Cell) String() string {
	switch c {
	case Unknown:
		return "UNKNOWN"
	case Free:
		return "FREE"
	case Obstacle:
		return "OBSTACLE"
	case Start:
		return "START"
	case Goal:
		return "GOAL"
	case Path:
		return "PATH"
	default:
		return fmt.Sprintf("Cell(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the declared states.
func (c Cell) Valid() bool {
	return c <= Path
}

// Traversable reports whether a planner may step onto c.
func (c Cell) Traversable() bool {
	switch c {
	case Free, Start, Goal:
		return true
	default:
		return false
	}
}

// Known reports whether c carries an observation.
func (c Cell) Known() bool {
	return c != Unknown
}

// Rune is the single-character text form used by Render.
func (c Cell) Rune() rune {
	switch c {
	case Unknown:
		return '?'
	case Free:
		return '.'
	case Obstacle:
		return '#'
	case Start:
		return 'S'
	case Goal:
		return 'G'
	case Path:
		return '*'
	default:
		return '!'
	}
}

// ParseRune is the inverse of Rune.
func ParseRune(r rune) (Cell, error) {
	switch r {
	case '?':
		return Unknown, nil
	case '.':
		return Free, nil
	case '#':
		return Obstacle, nil
	case 'S':
		return Start, nil
	case 'G':
		return Goal, nil
	case '*':
		return Path, nil
	default:
		return Unknown, fmt.Errorf("bad cell rune %q", r)
	}
}
