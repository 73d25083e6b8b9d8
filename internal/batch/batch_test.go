package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridscout.ai/internal/metrics"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/tuning"
	"gridscout.ai/internal/sim/worldgen"
)

func smallTuning(policy string) tuning.Tuning {
	t := tuning.Defaults()
	t.World.Rows, t.World.Cols = 12, 12
	t.World.ObstacleProbability = 0.2
	t.Agent.SensorRange = 2
	t.Agent.MaxSteps = 2000
	t.Agent.NoPathPolicy = policy
	return t
}

func TestRun_FrontierBatchReachesEveryGoal(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	rep, err := Run(context.Background(), Options{
		Base:        smallTuning(tuning.PolicyFrontier),
		Seeds:       Seeds(7, 16),
		Concurrency: 4,
		Metrics:     metrics.New(prometheus.NewRegistry()),
		Done: func(rr RunReport) {
			mu.Lock()
			defer mu.Unlock()
			seen[rr.Info.RunID] = true
		},
	})
	require.NoError(t, err)
	require.Len(t, rep.Runs, 16)
	assert.Equal(t, 16, rep.Reached)
	assert.Equal(t, 0, rep.Exhausted)
	assert.Equal(t, 0, rep.Failed)
	assert.InDelta(t, 1.0, rep.SuccessRate, 1e-9)
	assert.Greater(t, rep.MeanSteps, 0.0)
	assert.GreaterOrEqual(t, rep.StdDevSteps, 0.0)
	assert.Greater(t, rep.MeanKnownFraction, 0.0)
	assert.LessOrEqual(t, rep.MeanKnownFraction, 1.0)
	assert.Len(t, seen, 16, "run ids must be unique")

	for _, rr := range rep.Runs {
		require.NoError(t, rr.Err)
		assert.Equal(t, rr.World.Start, rr.Result.History[0])
		assert.Equal(t, rr.World.Goal, rr.Result.History[len(rr.Result.History)-1])
	}
}

func TestRun_Deterministic(t *testing.T) {
	opts := Options{Base: smallTuning(tuning.PolicyFrontier), Seeds: []int64{1, 2, 3}}
	a, err := Run(context.Background(), opts)
	require.NoError(t, err)
	opts.Concurrency = 1
	b, err := Run(context.Background(), opts)
	require.NoError(t, err)
	for i := range a.Runs {
		assert.Equal(t, a.Runs[i].Result.History, b.Runs[i].Result.History, "seed %d", opts.Seeds[i])
		assert.Equal(t, a.Runs[i].Info.Seed, b.Runs[i].Info.Seed)
	}
}

func TestRun_WaitPolicyShortRangeExhausts(t *testing.T) {
	base := smallTuning(tuning.PolicyWait)
	base.World.ObstacleProbability = 0
	base.Agent.SensorRange = 1
	base.Agent.MaxSteps = 5
	rep, err := Run(context.Background(), Options{Base: base, Seeds: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Exhausted)
	assert.Equal(t, 0.0, rep.SuccessRate)
	assert.Equal(t, 0.0, rep.MeanSteps)
}

func TestRun_GenerationFailureIsSkipped(t *testing.T) {
	base := smallTuning(tuning.PolicyWait)
	base.World.Rows, base.World.Cols = 1, 40
	base.World.ObstacleProbability = 0.99
	base.World.MaxAttempts = 3
	rep, err := Run(context.Background(), Options{Base: base, Seeds: []int64{5}})
	require.NoError(t, err)
	require.Len(t, rep.Runs, 1)
	assert.Equal(t, 1, rep.Failed)
	assert.True(t, errors.Is(rep.Runs[0].Err, worldgen.ErrGeneration))
}

func TestRun_InvalidBase(t *testing.T) {
	base := smallTuning(tuning.PolicyWait)
	base.Agent.MaxSteps = 0
	_, err := Run(context.Background(), Options{Base: base, Seeds: []int64{1}})
	assert.ErrorIs(t, err, tuning.ErrConfig)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := Run(ctx, Options{Base: smallTuning(tuning.PolicyFrontier), Seeds: Seeds(1, 4), Concurrency: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rep.Reached)
}

func TestRun_ObserversPerRun(t *testing.T) {
	var (
		mu    sync.Mutex
		count = map[string]int{}
	)
	_, err := Run(context.Background(), Options{
		Base:  smallTuning(tuning.PolicyFrontier),
		Seeds: []int64{10, 11},
		Observers: func(info explore.RunInfo) []explore.Observer {
			return []explore.Observer{counter{id: info.RunID, mu: &mu, count: count}}
		},
	})
	require.NoError(t, err)
	assert.Len(t, count, 2)
	for id, n := range count {
		assert.Positive(t, n, id)
	}
}

type counter struct {
	id    string
	mu    *sync.Mutex
	count map[string]int
}

func (c counter) ObserveStep(explore.StepEvent) {
	c.mu.Lock()
	c.count[c.id]++
	c.mu.Unlock()
}

func (c counter) ObserveResult(explore.Result) {}

func TestSeeds(t *testing.T) {
	a := Seeds(42, 5)
	assert.Equal(t, a, Seeds(42, 5))
	assert.NotEqual(t, a, Seeds(43, 5))
	for _, s := range a {
		assert.GreaterOrEqual(t, s, int64(0))
	}
}
