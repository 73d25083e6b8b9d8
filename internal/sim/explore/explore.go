// Package explore runs the sense, fuse, plan, move loop of a single agent
// exploring an unknown grid.
package explore

import (
	"context"
	"fmt"

	"gridscout.ai/internal/protocol"
	"gridscout.ai/internal/sim/belief"
	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/planner"
	"gridscout.ai/internal/sim/sensor"
	"gridscout.ai/internal/sim/tuning"
)

type Config struct {
	SensorRange int
	MaxSteps    int
	NoPath      NoPathPolicy
}

func (c Config) Validate() error {
	if c.SensorRange < 0 {
		return &tuning.ConfigError{Field: "sensor_range", Reason: fmt.Sprintf("must be >= 0, got %d", c.SensorRange)}
	}
	if c.MaxSteps < 1 {
		return &tuning.ConfigError{Field: "max_steps", Reason: fmt.Sprintf("must be >= 1, got %d", c.MaxSteps)}
	}
	if c.NoPath > Frontier {
		return &tuning.ConfigError{Field: "no_path_policy", Reason: fmt.Sprintf("unknown policy %d", c.NoPath)}
	}
	return nil
}

// ConfigFromTuning builds a loop Config from loaded tuning.
func ConfigFromTuning(t tuning.Tuning) (Config, error) {
	pol, err := ParsePolicy(t.Agent.NoPathPolicy)
	if err != nil {
		return Config{}, err
	}
	c := Config{
		SensorRange: t.Agent.SensorRange,
		MaxSteps:    t.Agent.MaxSteps,
		NoPath:      pol,
	}
	return c, c.Validate()
}

// Run is the mutable state of one exploration. It owns its belief map; the
// ground truth is only ever read.
type Run struct {
	cfg    Config
	truth  *grid.Grid
	belief *belief.Map
	goal   grid.Pos

	pos     grid.Pos
	history []grid.Pos
	state   State
	steps   int
}

func NewRun(cfg Config, truth *grid.Grid, start, goal grid.Pos) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if truth == nil || truth.Rows() < 1 || truth.Cols() < 1 {
		return nil, &tuning.ConfigError{Field: "world", Reason: "must be at least 1x1"}
	}
	if !truth.InBounds(start) {
		return nil, &tuning.ConfigError{Field: "start", Reason: fmt.Sprintf("%v out of bounds", start)}
	}
	if !truth.InBounds(goal) {
		return nil, &tuning.ConfigError{Field: "goal", Reason: fmt.Sprintf("%v out of bounds", goal)}
	}
	return &Run{
		cfg:     cfg,
		truth:   truth,
		belief:  belief.New(truth.Rows(), truth.Cols()),
		goal:    goal,
		pos:     start,
		history: []grid.Pos{start},
		state:   Exploring,
	}, nil
}

func (r *Run) Config() Config      { return r.cfg }
func (r *Run) State() State        { return r.state }
func (r *Run) Pos() grid.Pos       { return r.pos }
func (r *Run) Goal() grid.Pos      { return r.goal }
func (r *Run) Steps() int          { return r.steps }
func (r *Run) Done() bool          { return r.state.Terminal() }
func (r *Run) Belief() *belief.Map { return r.belief }

// History returns a copy of the visited positions, start first.
func (r *Run) History() []grid.Pos {
	out := make([]grid.Pos, len(r.history))
	copy(out, r.history)
	return out
}

// StepEvent describes one completed step.
type StepEvent struct {
	Step     int
	Prev     State
	State    State
	From     grid.Pos
	Pos      grid.Pos
	Moved    bool
	Frontier bool
	PathLen  int
	Learned  int
	Known    int
	Expanded int
}

// Message converts the event to its wire form.
func (e StepEvent) Message(runID string) protocol.StepMsg {
	return protocol.StepMsg{
		Type:            protocol.TypeStep,
		ProtocolVersion: protocol.Version,
		RunID:           runID,
		Step:            e.Step,
		State:           e.State.String(),
		PrevState:       e.Prev.String(),
		From:            [2]int{e.From.Row, e.From.Col},
		Pos:             [2]int{e.Pos.Row, e.Pos.Col},
		Moved:           e.Moved,
		Frontier:        e.Frontier,
		PathLen:         e.PathLen,
		Learned:         e.Learned,
		Known:           e.Known,
		Expanded:        e.Expanded,
	}
}

// Step performs one sense, fuse, plan, move cycle. It reports false and
// does nothing once the run is terminal.
func (r *Run) Step() (StepEvent, bool) {
	if r.state.Terminal() {
		return StepEvent{}, false
	}
	ev := StepEvent{Prev: r.state, From: r.pos}

	// Sense and fuse before planning so the plan sees this step's scan.
	reading := sensor.Scan(r.truth, r.pos, r.cfg.SensorRange)
	ev.Learned = r.belief.Fuse(reading)
	ev.Known = r.belief.Known()

	res := planner.Search(r.belief, r.pos, r.goal)
	ev.Expanded = res.Expanded
	ev.PathLen = len(res.Path)

	path := res.Path
	if len(path) == 0 && r.cfg.NoPath == Frontier {
		if target, ok := frontierTarget(r.belief, r.pos, r.goal); ok {
			fr := planner.Search(r.belief, r.pos, target)
			ev.Expanded += fr.Expanded
			path = fr.Path
			ev.Frontier = len(path) > 1
		}
	}

	if len(path) > 0 {
		next := path[0]
		if len(path) > 1 {
			next = path[1]
		}
		r.pos = next
		r.history = append(r.history, next)
		ev.Moved = next != ev.From
	}

	r.steps++
	r.state = Transition(r.state, Outcome{
		PathFound:    len(res.Path) > 0,
		AtGoal:       r.pos == r.goal,
		FrontierMove: ev.Frontier,
		Learned:      ev.Learned,
		StepsUsed:    r.steps,
		MaxSteps:     r.cfg.MaxSteps,
		Policy:       r.cfg.NoPath,
	})

	ev.Step = r.steps
	ev.State = r.state
	ev.Pos = r.pos
	return ev, true
}

// Result is the outcome of a finished (or cancelled) run.
type Result struct {
	State   State
	History []grid.Pos
	Steps   int
	// Belief is a copy of the final internal map.
	Belief *grid.Grid
	Known  int
}

func (r *Run) Result() Result {
	return Result{
		State:   r.state,
		History: r.History(),
		Steps:   r.steps,
		Belief:  r.belief.Grid(),
		Known:   r.belief.Known(),
	}
}

// RunInfo is the run metadata that does not live in Run itself.
type RunInfo struct {
	RunID    string
	Seed     int64
	Attempts int
	Config   Config
}

// Summary converts the result to its wire form.
func (res Result) Summary(info RunInfo) protocol.SummaryMsg {
	m := protocol.SummaryMsg{
		Type:            protocol.TypeSummary,
		ProtocolVersion: protocol.Version,
		RunID:           info.RunID,
		Seed:            info.Seed,
		SensorRange:     info.Config.SensorRange,
		MaxSteps:        info.Config.MaxSteps,
		Attempts:        info.Attempts,
		Outcome:         res.State.String(),
		Steps:           res.Steps,
		History:         make([][2]int, len(res.History)),
		KnownCells:      res.Known,
	}
	if res.Belief != nil {
		m.Rows, m.Cols = res.Belief.Rows(), res.Belief.Cols()
	}
	for i, p := range res.History {
		m.History[i] = [2]int{p.Row, p.Col}
	}
	return m
}

// Observer sees every step and the final result, synchronously on the
// run's goroutine. Implementations must not block for long.
type Observer interface {
	ObserveStep(ev StepEvent)
	ObserveResult(res Result)
}

// Execute drives a new run to a terminal state. Cancelling ctx stops the
// run between steps and returns the partial result with ctx.Err().
func Execute(ctx context.Context, cfg Config, truth *grid.Grid, start, goal grid.Pos, observers ...Observer) (Result, error) {
	r, err := NewRun(cfg, truth, start, goal)
	if err != nil {
		return Result{}, err
	}
	return Drive(ctx, r, observers...)
}

// Drive steps an existing run until it is terminal.
func Drive(ctx context.Context, r *Run, observers ...Observer) (Result, error) {
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return r.Result(), err
		}
		ev, _ := r.Step()
		for _, o := range observers {
			o.ObserveStep(ev)
		}
	}
	res := r.Result()
	for _, o := range observers {
		o.ObserveResult(res)
	}
	return res, nil
}
