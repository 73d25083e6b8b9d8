// Package metrics exposes run, step and planner counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gridscout.ai/internal/sim/explore"
)

const namespace = "gridscout"

type Metrics struct {
	// RunsTotal counts finished runs. Labels: outcome (REACHED, EXHAUSTED, CANCELLED)
	RunsTotal *prometheus.CounterVec
	// StepsTotal counts steps by the state they ended in.
	StepsTotal *prometheus.CounterVec
	// PlanFailures counts steps whose goal plan came back empty.
	PlanFailures prometheus.Counter
	// FrontierMoves counts steps spent walking toward a frontier cell.
	FrontierMoves prometheus.Counter
	// Expanded is the number of A* node expansions per step.
	Expanded prometheus.Histogram
	// WorldAttempts is the number of samples worldgen needed per world.
	WorldAttempts prometheus.Histogram
	// RunSteps is the length of each finished run.
	RunSteps prometheus.Histogram
}

// New registers the collectors on reg. Use prometheus.DefaultRegisterer to
// serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished exploration runs by outcome",
		}, []string{"outcome"}),
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Simulation steps by resulting state",
		}, []string{"state"}),
		PlanFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_failures_total",
			Help:      "Steps where no known path to the goal existed",
		}),
		FrontierMoves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frontier_moves_total",
			Help:      "Steps spent moving toward the frontier",
		}),
		Expanded: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "planner_expanded_nodes",
			Help:      "A* node expansions per step",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		WorldAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "world_attempts",
			Help:      "Samples drawn before a solvable world was found",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 100, 1000},
		}),
		RunSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Steps taken per finished run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

// OutcomeCancelled labels runs stopped by context cancellation.
const OutcomeCancelled = "CANCELLED"

// ObserveWorld records a generated world.
func (m *Metrics) ObserveWorld(attempts int) {
	if m == nil {
		return
	}
	m.WorldAttempts.Observe(float64(attempts))
}

// ObserveCancelled records a run that did not reach a terminal state.
func (m *Metrics) ObserveCancelled() {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(OutcomeCancelled).Inc()
}

// Observer returns an explore.Observer feeding m. A nil m yields a no-op.
func (m *Metrics) Observer() explore.Observer { return observer{m: m} }

type observer struct{ m *Metrics }

func (o observer) ObserveStep(ev explore.StepEvent) {
	if o.m == nil {
		return
	}
	o.m.StepsTotal.WithLabelValues(ev.State.String()).Inc()
	if ev.PathLen == 0 {
		o.m.PlanFailures.Inc()
	}
	if ev.Frontier {
		o.m.FrontierMoves.Inc()
	}
	o.m.Expanded.Observe(float64(ev.Expanded))
}

func (o observer) ObserveResult(res explore.Result) {
	if o.m == nil {
		return
	}
	o.m.RunsTotal.WithLabelValues(res.State.String()).Inc()
	o.m.RunSteps.Observe(float64(res.Steps))
}
