package explore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/tuning"
	"gridscout.ai/internal/sim/worldgen"
)

func mustParse(t *testing.T, s string) *grid.Grid {
	t.Helper()
	g, err := grid.Parse(s)
	if err != nil {
		t.Fatalf("parse grid: %v", err)
	}
	return g
}

func mustWorld(t *testing.T, p worldgen.Params) worldgen.World {
	t.Helper()
	w, err := worldgen.Generate(p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return w
}

// checkRun asserts the invariants every finished run must hold.
func checkRun(t *testing.T, truth *grid.Grid, res Result) {
	t.Helper()
	if len(res.History) < 1 {
		t.Fatalf("empty history")
	}
	for i, p := range res.History {
		if !truth.InBounds(p) {
			t.Fatalf("history[%d]=%v out of bounds", i, p)
		}
		if !truth.At(p).Traversable() {
			t.Fatalf("history[%d]=%v is %v in truth", i, p, truth.At(p))
		}
		if i > 0 && res.History[i-1] != p && !res.History[i-1].Adjacent(p) {
			t.Fatalf("teleport %v -> %v at %d", res.History[i-1], p, i)
		}
	}
	known := 0
	for r := 0; r < truth.Rows(); r++ {
		for c := 0; c < truth.Cols(); c++ {
			p := grid.Pos{Row: r, Col: c}
			b := res.Belief.At(p)
			if b == grid.Unknown {
				continue
			}
			known++
			if b != truth.At(p) {
				t.Fatalf("belief %v=%v disagrees with truth %v", p, b, truth.At(p))
			}
		}
	}
	if known != res.Known {
		t.Fatalf("Known=%d but %d cells are known", res.Known, known)
	}
}

func TestScenarioA_FullVisibilityOpenGrid(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 5, Cols: 5, Seed: 1})
	res, err := Execute(context.Background(), Config{SensorRange: 5, MaxSteps: 100}, w.Truth, w.Start, w.Goal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Reached {
		t.Fatalf("state=%s want REACHED", res.State)
	}
	if len(res.History) != 9 {
		t.Fatalf("history len=%d want 9: %v", len(res.History), res.History)
	}
	if res.Steps != 8 {
		t.Fatalf("steps=%d want 8", res.Steps)
	}
	checkRun(t, w.Truth, res)
}

func TestScenarioB_CorridorWithinFootprint(t *testing.T) {
	truth := mustParse(t, "G##\n.S#\n###")
	res, err := Execute(context.Background(), Config{SensorRange: 1, MaxSteps: 10},
		truth, grid.Pos{Row: 1, Col: 1}, grid.Pos{Row: 0, Col: 0})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []grid.Pos{{Row: 1, Col: 1}, {Row: 1, Col: 0}, {Row: 0, Col: 0}}
	if diff := cmp.Diff(want, res.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if res.State != Reached || res.Steps != 2 {
		t.Fatalf("state=%s steps=%d want REACHED after 2", res.State, res.Steps)
	}
}

func TestScenarioB_FrontierDiscoversCorridor(t *testing.T) {
	truth := mustParse(t, ""+
		"S.....\n"+
		"#####.\n"+
		"......\n"+
		".#####\n"+
		".....G")
	start, goal := grid.Pos{}, grid.Pos{Row: 4, Col: 5}
	res, err := Execute(context.Background(), Config{SensorRange: 1, MaxSteps: 200, NoPath: Frontier}, truth, start, goal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Reached {
		t.Fatalf("state=%s want REACHED", res.State)
	}
	if res.Steps <= 1 {
		t.Fatalf("steps=%d, corridor should take several steps", res.Steps)
	}
	// The corridor is the only route, so no step is wasted.
	if want := grid.Distance(truth, start, goal, grid.Cell.Traversable); res.Steps != want {
		t.Fatalf("steps=%d want corridor length %d", res.Steps, want)
	}
	checkRun(t, truth, res)
}

func TestScenarioD_BudgetOfOne(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 10, Cols: 10, Seed: 2})
	res, err := Execute(context.Background(), Config{SensorRange: 1, MaxSteps: 1}, w.Truth, w.Start, w.Goal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Exhausted {
		t.Fatalf("state=%s want EXHAUSTED", res.State)
	}
	if diff := cmp.Diff([]grid.Pos{w.Start}, res.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestWait_SpendsBudgetInPlace(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 10, Cols: 10, Seed: 2})
	res, err := Execute(context.Background(), Config{SensorRange: 1, MaxSteps: 5}, w.Truth, w.Start, w.Goal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Exhausted || res.Steps != 5 || len(res.History) != 1 {
		t.Fatalf("state=%s steps=%d history=%d want EXHAUSTED/5/1", res.State, res.Steps, len(res.History))
	}
	if res.Known != 4 {
		t.Fatalf("known=%d want 4 (2x2 corner footprint)", res.Known)
	}
}

func TestStop_EndsWhenNothingToLearn(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 10, Cols: 10, Seed: 2})
	res, err := Execute(context.Background(), Config{SensorRange: 1, MaxSteps: 50, NoPath: Stop}, w.Truth, w.Start, w.Goal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Exhausted || res.Steps != 2 {
		t.Fatalf("state=%s steps=%d want EXHAUSTED after 2", res.State, res.Steps)
	}
}

func TestFrontier_RandomWorldsReachGoal(t *testing.T) {
	for seed := int64(0); seed < 40; seed++ {
		w := mustWorld(t, worldgen.Params{Rows: 15, Cols: 15, ObstacleProbability: 0.25, Seed: seed})
		res, err := Execute(context.Background(), Config{SensorRange: 2, MaxSteps: 5000, NoPath: Frontier}, w.Truth, w.Start, w.Goal)
		if err != nil {
			t.Fatalf("seed %d: Execute: %v", seed, err)
		}
		if res.State != Reached {
			t.Fatalf("seed %d: state=%s after %d steps\n%s", seed, res.State, res.Steps, res.Belief.Render())
		}
		if res.History[len(res.History)-1] != w.Goal {
			t.Fatalf("seed %d: history ends at %v", seed, res.History[len(res.History)-1])
		}
		checkRun(t, w.Truth, res)
	}
}

func TestFrontier_EnclosedStartGivesUp(t *testing.T) {
	truth := mustParse(t, "S.#..\n..#..\n###..\n....G")
	res, err := Execute(context.Background(), Config{SensorRange: 1, MaxSteps: 100, NoPath: Frontier},
		truth, grid.Pos{}, grid.Pos{Row: 3, Col: 4})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Exhausted {
		t.Fatalf("state=%s want EXHAUSTED", res.State)
	}
	if res.Steps >= 100 {
		t.Fatalf("steps=%d, run should give up once the pocket is mapped", res.Steps)
	}
	checkRun(t, truth, res)
}

func TestSingleCellWorld(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 1, Cols: 1})
	res, err := Execute(context.Background(), Config{SensorRange: 0, MaxSteps: 1}, w.Truth, w.Start, w.Goal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.State != Reached {
		t.Fatalf("state=%s want REACHED", res.State)
	}
	if diff := cmp.Diff([]grid.Pos{{}, {}}, res.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_RejectsBadConfigBeforeStepping(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 3, Cols: 3})
	rec := &recorder{}
	for _, cfg := range []Config{
		{SensorRange: -1, MaxSteps: 1},
		{SensorRange: 1, MaxSteps: 0},
		{SensorRange: 1, MaxSteps: 1, NoPath: NoPathPolicy(9)},
	} {
		_, err := Execute(context.Background(), cfg, w.Truth, w.Start, w.Goal, rec)
		if !errors.Is(err, tuning.ErrConfig) {
			t.Fatalf("cfg %+v: expected config error, got %v", cfg, err)
		}
	}
	if _, err := Execute(context.Background(), Config{MaxSteps: 1}, w.Truth, w.Start, grid.Pos{Row: 3}, rec); !errors.Is(err, tuning.ErrConfig) {
		t.Fatalf("expected config error for out-of-bounds goal, got %v", err)
	}
	if len(rec.steps) != 0 || rec.results != 0 {
		t.Fatalf("observers ran for invalid config")
	}
}

type recorder struct {
	steps   []StepEvent
	results int
	last    Result
}

func (r *recorder) ObserveStep(ev StepEvent) { r.steps = append(r.steps, ev) }
func (r *recorder) ObserveResult(res Result) { r.results++; r.last = res }

func TestExecute_ObserversSeeEveryStep(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 8, Cols: 8, ObstacleProbability: 0.2, Seed: 4})
	rec := &recorder{}
	res, err := Execute(context.Background(), Config{SensorRange: 8, MaxSteps: 100}, w.Truth, w.Start, w.Goal, rec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rec.steps) != res.Steps || rec.results != 1 {
		t.Fatalf("observed %d steps / %d results, run took %d steps", len(rec.steps), rec.results, res.Steps)
	}
	for i, ev := range rec.steps {
		if ev.Step != i+1 {
			t.Fatalf("event %d has step %d", i, ev.Step)
		}
		if i > 0 && ev.From != rec.steps[i-1].Pos {
			t.Fatalf("event %d from %v, previous ended at %v", i, ev.From, rec.steps[i-1].Pos)
		}
	}
	first := rec.steps[0]
	if first.Prev != Exploring || first.State != Advancing || !first.Moved || first.Learned != 64 {
		t.Fatalf("first event=%+v", first)
	}
	last := rec.steps[len(rec.steps)-1]
	if last.State != Reached || last.Pos != w.Goal {
		t.Fatalf("last event=%+v", last)
	}
	if rec.last.State != res.State {
		t.Fatalf("observer result %s != %s", rec.last.State, res.State)
	}
}

func TestDrive_Cancelled(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 6, Cols: 6, Seed: 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Execute(ctx, Config{SensorRange: 6, MaxSteps: 10}, w.Truth, w.Start, w.Goal)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	if res.Steps != 0 || len(res.History) != 1 {
		t.Fatalf("partial result steps=%d history=%d", res.Steps, len(res.History))
	}
}

func TestStep_TerminalRunIsInert(t *testing.T) {
	w := mustWorld(t, worldgen.Params{Rows: 2, Cols: 2})
	r, err := NewRun(Config{SensorRange: 2, MaxSteps: 10}, w.Truth, w.Start, w.Goal)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	for !r.Done() {
		r.Step()
	}
	before := r.History()
	if _, ok := r.Step(); ok {
		t.Fatalf("Step on a terminal run should report false")
	}
	if diff := cmp.Diff(before, r.History()); diff != "" {
		t.Fatalf("terminal Step changed history:\n%s", diff)
	}
}

func TestStepEvent_Message(t *testing.T) {
	ev := StepEvent{Step: 3, Prev: Exploring, State: Advancing, From: grid.Pos{Row: 1, Col: 2}, Pos: grid.Pos{Row: 2, Col: 2}, Moved: true, PathLen: 4}
	m := ev.Message("run-1")
	if m.Type != "STEP" || m.RunID != "run-1" || m.State != "ADVANCING" || m.PrevState != "EXPLORING" {
		t.Fatalf("message=%+v", m)
	}
	if m.From != [2]int{1, 2} || m.Pos != [2]int{2, 2} {
		t.Fatalf("positions from=%v pos=%v", m.From, m.Pos)
	}
}

func TestResult_Summary(t *testing.T) {
	truth := mustParse(t, "G##\n.S#\n###")
	cfg := Config{SensorRange: 1, MaxSteps: 10}
	res, err := Execute(context.Background(), cfg, truth, grid.Pos{Row: 1, Col: 1}, grid.Pos{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m := res.Summary(RunInfo{RunID: "r", Seed: 9, Attempts: 2, Config: cfg})
	if m.Type != "SUMMARY" || m.Outcome != "REACHED" || m.Rows != 3 || m.Cols != 3 || m.Seed != 9 || m.Attempts != 2 {
		t.Fatalf("summary=%+v", m)
	}
	if diff := cmp.Diff([][2]int{{1, 1}, {1, 0}, {0, 0}}, m.History); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}
