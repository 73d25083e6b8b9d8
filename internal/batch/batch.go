// Package batch runs many independent explorations in parallel and
// aggregates their outcomes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"gridscout.ai/internal/metrics"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/mathx"
	"gridscout.ai/internal/sim/tuning"
	"gridscout.ai/internal/sim/worldgen"
)

type Options struct {
	// Base supplies every parameter except the seed.
	Base  tuning.Tuning
	Seeds []int64
	// Concurrency bounds parallel runs; <= 0 means one per seed.
	Concurrency int

	// Observers, when set, returns extra observers for one run (step logs,
	// index writers). Each run gets its own.
	Observers func(info explore.RunInfo) []explore.Observer
	// Done, when set, is called after each run from that run's goroutine.
	Done func(rr RunReport)

	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// RunReport is the outcome of one seed. Err is set when the world could not
// be generated; the run is then skipped, not fatal to the batch.
type RunReport struct {
	Info   explore.RunInfo
	World  worldgen.World
	Result explore.Result
	Err    error
}

type Report struct {
	Runs []RunReport

	Reached   int
	Exhausted int
	Failed    int

	// SuccessRate is Reached over runs that produced a world.
	SuccessRate float64
	// Step statistics over reached runs only.
	MeanSteps   float64
	StdDevSteps float64
	// MeanKnownFraction is the mean share of cells mapped per run.
	MeanKnownFraction float64
}

// Seeds derives n well-spread seeds from base.
func Seeds(base int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(mathx.Hash2(base, i, 0) >> 1)
	}
	return out
}

// Run executes one exploration per seed. Only context cancellation aborts
// the batch; the partial report is returned with the error.
func Run(ctx context.Context, opts Options) (Report, error) {
	if err := opts.Base.Validate(); err != nil {
		return Report{}, fmt.Errorf("batch: %w", err)
	}
	cfg, err := explore.ConfigFromTuning(opts.Base)
	if err != nil {
		return Report{}, fmt.Errorf("batch: %w", err)
	}

	runs := make([]RunReport, len(opts.Seeds))
	g, gCtx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = len(opts.Seeds)
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, seed := range opts.Seeds {
		i, seed := i, seed // per-iteration copies (Go 1.21 loop semantics)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rr, err := runOne(gCtx, opts, cfg, seed)
			runs[i] = rr
			if err != nil {
				return err
			}
			if opts.Done != nil {
				opts.Done(rr)
			}
			return nil
		})
	}
	err = g.Wait()
	return aggregate(runs), err
}

func runOne(ctx context.Context, opts Options, cfg explore.Config, seed int64) (RunReport, error) {
	w := opts.Base.World
	info := explore.RunInfo{RunID: uuid.NewString(), Seed: seed, Config: cfg}
	rr := RunReport{Info: info}

	world, err := worldgen.Generate(worldgen.Params{
		Rows:                w.Rows,
		Cols:                w.Cols,
		ObstacleProbability: w.ObstacleProbability,
		Seed:                seed,
		MaxAttempts:         w.MaxAttempts,
	})
	if err != nil {
		rr.Err = err
		if opts.Logger != nil {
			opts.Logger.Printf("run=%s seed=%d skipped: %v", info.RunID, seed, err)
		}
		return rr, nil
	}
	opts.Metrics.ObserveWorld(world.Attempts)
	info.Attempts = world.Attempts
	rr.Info = info
	rr.World = world

	observers := []explore.Observer{opts.Metrics.Observer()}
	if opts.Logger != nil {
		observers = append(observers, explore.LogObserver{Logger: opts.Logger, RunID: info.RunID})
	}
	if opts.Observers != nil {
		observers = append(observers, opts.Observers(info)...)
	}

	res, err := explore.Execute(ctx, cfg, world.Truth, world.Start, world.Goal, observers...)
	rr.Result = res
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			opts.Metrics.ObserveCancelled()
		}
		return rr, err
	}
	return rr, nil
}

func aggregate(runs []RunReport) Report {
	rep := Report{Runs: runs}
	var steps, known []float64
	for _, rr := range runs {
		if rr.Err != nil {
			rep.Failed++
			continue
		}
		// Cancelled before it started.
		if rr.World.Truth == nil {
			continue
		}
		switch rr.Result.State {
		case explore.Reached:
			rep.Reached++
			steps = append(steps, float64(rr.Result.Steps))
		case explore.Exhausted:
			rep.Exhausted++
		}
		cells := rr.World.Truth.Rows() * rr.World.Truth.Cols()
		known = append(known, float64(rr.Result.Known)/float64(cells))
	}
	if finished := rep.Reached + rep.Exhausted; finished > 0 {
		rep.SuccessRate = float64(rep.Reached) / float64(finished)
	}
	if len(steps) > 0 {
		rep.MeanSteps, rep.StdDevSteps = stat.MeanStdDev(steps, nil)
		if len(steps) == 1 {
			rep.StdDevSteps = 0
		}
	}
	if len(known) > 0 {
		rep.MeanKnownFraction = stat.Mean(known, nil)
	}
	return rep
}
