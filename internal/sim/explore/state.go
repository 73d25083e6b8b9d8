package explore

import (
	"fmt"
	"strings"

	"gridscout.ai/internal/sim/tuning"
)

// State is the exploration loop's phase.
type State uint8

const (
	// Exploring: no path to the goal is known yet.
	Exploring State = iota
	// Advancing: a path exists and the agent moved along it this step.
	Advancing
	// Reached: the agent stands on the goal. Terminal.
	Reached
	// Exhausted: the step budget ran out first. Terminal.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Exploring:
		return "EXPLORING"
	case Advancing:
		return "ADVANCING"
	case Reached:
		return "REACHED"
	case Exhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) Terminal() bool {
	switch s {
	case Reached, Exhausted:
		return true
	default:
		return false
	}
}

// NoPathPolicy decides what a failed plan does to the run.
type NoPathPolicy uint8

const (
	// Wait spends the step without moving; the next step rescans the same
	// cell. This is the historical behaviour.
	Wait NoPathPolicy = iota
	// Stop ends the run as Exhausted when a plan fails and the scan that
	// preceded it learned nothing new, since staying put cannot help.
	Stop
	// Frontier steps toward the reachable known cell bordering unknown space
	// that lies closest to the goal. The run ends when no such cell remains
	// and the scan learned nothing.
	Frontier
)

func (p NoPathPolicy) String() string {
	switch p {
	case Wait:
		return tuning.PolicyWait
	case Stop:
		return tuning.PolicyStop
	case Frontier:
		return tuning.PolicyFrontier
	default:
		return fmt.Sprintf("NoPathPolicy(%d)", uint8(p))
	}
}

func ParsePolicy(s string) (NoPathPolicy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", tuning.PolicyWait:
		return Wait, nil
	case tuning.PolicyStop:
		return Stop, nil
	case tuning.PolicyFrontier:
		return Frontier, nil
	default:
		return Wait, &tuning.ConfigError{Field: "no_path_policy", Reason: fmt.Sprintf("unknown policy %q", s)}
	}
}

// Outcome is everything Transition needs to know about one step.
type Outcome struct {
	PathFound bool
	AtGoal    bool

	// FrontierMove is set when a failed plan was answered by a frontier step.
	FrontierMove bool

	// Learned is the number of cells the step's scan added to the map.
	Learned int

	// StepsUsed counts steps taken including this one.
	StepsUsed int
	MaxSteps  int
	Policy    NoPathPolicy
}

// Transition is the pure state function of the loop. Terminal states are
// absorbing.
func Transition(prev State, o Outcome) State {
	if prev.Terminal() {
		return prev
	}
	if o.AtGoal {
		return Reached
	}
	if !o.PathFound && o.Learned == 0 {
		switch o.Policy {
		case Stop:
			return Exhausted
		case Frontier:
			if !o.FrontierMove {
				return Exhausted
			}
		}
	}
	if o.StepsUsed >= o.MaxSteps {
		return Exhausted
	}
	if !o.PathFound {
		return Exploring
	}
	return Advancing
}
