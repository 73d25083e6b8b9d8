package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gridscout.ai/internal/metrics"
	"gridscout.ai/internal/persistence/indexdb"
	persistlog "gridscout.ai/internal/persistence/log"
	"gridscout.ai/internal/persistence/snapshot"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/tuning"
	"gridscout.ai/internal/sim/worldgen"
)

type runOptions struct {
	overrides overrideFlags
	logDir    string
	snapshot  string
	dbPath    string
	json      bool
	truth     bool
}

func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single exploration and print the map",
		Long: `Generate one world, explore it until the goal is reached or the step
budget is spent, then print the agent's map with its path marked.

Examples:
  # Default tuning
  explorer run

  # Bigger world, short sensor, walk toward the frontier when blocked
  explorer run --rows 40 --cols 40 -r 2 --policy frontier

  # Keep a step log, a snapshot and an index row
  explorer run --log-dir data/logs --snapshot data/run.snap.zst --db data/index.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tune, err := a.loadTuning()
			if err != nil {
				return err
			}
			if err := opts.overrides.apply(cmd, &tune); err != nil {
				return err
			}
			return a.runOnce(cmd.Context(), tune, opts)
		},
	}
	opts.overrides.register(cmd)
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "write a zstd JSONL step log under this directory")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "write a run snapshot to this path")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "record the run in this sqlite index")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the run summary as JSON instead of the map")
	cmd.Flags().BoolVar(&opts.truth, "truth", false, "also print the hidden world")
	return cmd
}

func (a *App) runOnce(ctx context.Context, tune tuning.Tuning, opts *runOptions) error {
	logger := a.logger()

	var idx *indexdb.SQLiteIndex
	if opts.dbPath != "" {
		var err error
		idx, err = indexdb.OpenSQLite(opts.dbPath)
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}
		defer idx.Close()
		if _, err := idx.UpsertTuning(tune); err != nil {
			return fmt.Errorf("index: %w", err)
		}
	}

	sinks := sinkOptions{logDir: opts.logDir, idx: idx}
	if opts.snapshot != "" {
		sinks.snapshotPath = func(string) string { return opts.snapshot }
	}
	out, err := a.simulate(ctx, tune, sinks, logger, nil, nil)
	if out.world.Truth == nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(out.result.Summary(out.info)); encErr != nil {
			return encErr
		}
		return err
	}
	if opts.truth {
		fmt.Fprintln(a.stdout, "world:")
		fmt.Fprint(a.stdout, grid.AnnotatePath(out.world.Truth, out.result.History).Render())
		fmt.Fprintln(a.stdout)
		fmt.Fprintln(a.stdout, "map:")
	}
	fmt.Fprint(a.stdout, grid.AnnotatePath(out.result.Belief, out.result.History).Render())
	cells := out.world.Truth.Rows() * out.world.Truth.Cols()
	fmt.Fprintf(a.stdout, "run %s: %s after %d steps, visited %d cells, mapped %d/%d\n",
		out.info.RunID, out.result.State, out.result.Steps, len(out.result.History), out.result.Known, cells)
	return err
}

// sinkOptions selects where a run's artefacts go. Zero values disable.
type sinkOptions struct {
	logDir       string
	snapshotPath func(runID string) string
	idx          *indexdb.SQLiteIndex
}

type runOutcome struct {
	info         explore.RunInfo
	params       worldgen.Params
	world        worldgen.World
	result       explore.Result
	snapshotPath string
}

// simulate generates a world and drives one run through the configured
// sinks. extra may add observers that need the live Run. A cancelled run
// still writes its artefacts and returns ctx.Err().
func (a *App) simulate(ctx context.Context, tune tuning.Tuning, sinks sinkOptions, logger *log.Logger,
	extra func(explore.RunInfo, *explore.Run) []explore.Observer, m *metrics.Metrics) (runOutcome, error) {
	var out runOutcome

	cfg, err := explore.ConfigFromTuning(tune)
	if err != nil {
		return out, err
	}
	out.params = worldgen.Params{
		Rows:                tune.World.Rows,
		Cols:                tune.World.Cols,
		ObstacleProbability: tune.World.ObstacleProbability,
		Seed:                tune.World.Seed,
		MaxAttempts:         tune.World.MaxAttempts,
	}
	w, err := worldgen.Generate(out.params)
	if err != nil {
		return out, err
	}
	m.ObserveWorld(w.Attempts)
	out.world = w
	out.info = explore.RunInfo{RunID: uuid.NewString(), Seed: out.params.Seed, Attempts: w.Attempts, Config: cfg}
	logger.Printf("run=%s seed=%d world=%dx%d p=%.2f attempts=%d range=%d max_steps=%d policy=%s",
		out.info.RunID, out.params.Seed, out.params.Rows, out.params.Cols, out.params.ObstacleProbability,
		w.Attempts, cfg.SensorRange, cfg.MaxSteps, cfg.NoPath)

	r, err := explore.NewRun(cfg, w.Truth, w.Start, w.Goal)
	if err != nil {
		return out, err
	}
	observers := []explore.Observer{explore.LogObserver{Logger: logger, RunID: out.info.RunID}, m.Observer()}
	var stepLog *persistlog.StepLogger
	if sinks.logDir != "" {
		stepLog = persistlog.NewStepLogger(sinks.logDir, out.info)
		observers = append(observers, stepLog)
	}
	if sinks.idx != nil {
		observers = append(observers, sinks.idx.StepObserver(out.info.RunID))
	}
	if extra != nil {
		observers = append(observers, extra(out.info, r)...)
	}

	res, runErr := explore.Drive(ctx, r, observers...)
	out.result = res
	if runErr != nil {
		m.ObserveCancelled()
	}

	if stepLog != nil {
		if err := stepLog.Close(); err != nil {
			return out, fmt.Errorf("step log: %w", err)
		}
		logger.Printf("step log %s (%s)", stepLog.Path(), fileSize(stepLog.Path()))
	}
	if sinks.snapshotPath != nil {
		path := sinks.snapshotPath(out.info.RunID)
		if err := snapshot.WriteSnapshot(path, snapshot.Capture(out.info, out.params, w, res)); err != nil {
			return out, fmt.Errorf("snapshot: %w", err)
		}
		out.snapshotPath = path
		logger.Printf("snapshot %s (%s)", path, fileSize(path))
	}
	if sinks.idx != nil {
		sinks.idx.RecordRun(res.Summary(out.info), out.snapshotPath)
		if err := sinks.idx.Sync(context.Background()); err != nil {
			return out, fmt.Errorf("index: %w", err)
		}
	}
	return out, runErr
}

func fileSize(path string) string {
	st, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(st.Size()))
}
