package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gridscout.ai/internal/batch"
	"gridscout.ai/internal/persistence/indexdb"
	persistlog "gridscout.ai/internal/persistence/log"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/scenario"
	"gridscout.ai/internal/sim/tuning"
)

const defaultScenariosPath = "./configs/scenarios.yaml"

type batchOptions struct {
	overrides     overrideFlags
	n             int
	concurrency   int
	logDir        string
	dbPath        string
	json          bool
	scenariosPath string
	scenario      string
}

// batchSummary is the JSON form of a batch report.
type batchSummary struct {
	Scenario          string  `json:"scenario,omitempty"`
	Runs              int     `json:"runs"`
	Reached           int     `json:"reached"`
	Exhausted         int     `json:"exhausted"`
	Failed            int     `json:"failed"`
	SuccessRate       float64 `json:"success_rate"`
	MeanSteps         float64 `json:"mean_steps"`
	StdDevSteps       float64 `json:"stddev_steps"`
	MeanKnownFraction float64 `json:"mean_known_fraction"`
}

// batchJob is one tuning to sweep.
type batchJob struct {
	scenario string
	tune     tuning.Tuning
	n        int
}

func (a *App) newBatchCmd() *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many seeds in parallel and report aggregate outcomes",
		Long: `Run one exploration per seed. Seeds are derived from the tuning seed, so
the same command reproduces the same report.

With --scenario the named presets from the scenarios file are layered over
the tuning before the command-line overrides; "all" sweeps every preset.

Examples:
  explorer batch -n 200 --policy frontier -r 2
  explorer batch -n 50 --concurrency 4 --db data/index.db --json
  explorer batch --scenario all --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.n < 1 {
				return fmt.Errorf("--count must be >= 1, got %d", opts.n)
			}
			jobs, err := a.batchJobs(cmd, opts)
			if err != nil {
				return err
			}
			logger := a.logger()

			var idx *indexdb.SQLiteIndex
			if opts.dbPath != "" {
				idx, err = indexdb.OpenSQLite(opts.dbPath)
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				defer idx.Close()
			}

			sums := make([]batchSummary, 0, len(jobs))
			var runErr error
			for _, job := range jobs {
				if idx != nil {
					if _, err := idx.UpsertTuning(job.tune); err != nil {
						return fmt.Errorf("index: %w", err)
					}
				}
				sum, err := a.runBatch(cmd.Context(), opts, job, idx)
				sums = append(sums, sum)
				if err != nil {
					runErr = err
					break
				}
			}
			if idx != nil {
				if err := idx.Sync(cmd.Context()); err != nil && runErr == nil {
					runErr = err
				}
			}

			if opts.json {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				var v any = sums
				if opts.scenario == "" {
					v = sums[0]
				}
				if err := enc.Encode(v); err != nil {
					return err
				}
				return runErr
			}
			for _, sum := range sums {
				if sum.Scenario != "" {
					fmt.Fprintf(a.stdout, "[%s] ", sum.Scenario)
				}
				fmt.Fprintf(a.stdout, "runs=%d reached=%d exhausted=%d failed=%d success=%.1f%%\n",
					sum.Runs, sum.Reached, sum.Exhausted, sum.Failed, 100*sum.SuccessRate)
				fmt.Fprintf(a.stdout, "steps mean=%.2f sd=%.2f  mapped=%.1f%%\n",
					sum.MeanSteps, sum.StdDevSteps, 100*sum.MeanKnownFraction)
			}
			if runErr != nil {
				logger.Printf("batch stopped: %v", runErr)
			}
			return runErr
		},
	}
	opts.overrides.register(cmd)
	cmd.Flags().IntVarP(&opts.n, "count", "n", 20, "number of runs (per scenario; default: the scenario's runs)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "parallel runs (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "write one zstd JSONL step log per run under this directory")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "record every run in this sqlite index")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&opts.scenariosPath, "scenarios", defaultScenariosPath, "scenario presets file (built-in presets if the default is missing)")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", `scenario id to run, or "all"`)
	return cmd
}

// batchJobs resolves the tunings to sweep: the loaded tuning alone, or one
// per selected scenario.
func (a *App) batchJobs(cmd *cobra.Command, opts *batchOptions) ([]batchJob, error) {
	base, err := a.loadTuning()
	if err != nil {
		return nil, err
	}
	if opts.scenario == "" {
		if err := opts.overrides.apply(cmd, &base); err != nil {
			return nil, err
		}
		return []batchJob{{tune: base, n: opts.n}}, nil
	}

	cfg, err := scenario.Load(opts.scenariosPath)
	if err != nil && opts.scenariosPath == defaultScenariosPath && errors.Is(err, fs.ErrNotExist) {
		cfg, err = scenario.Load("")
	}
	if err != nil {
		return nil, err
	}
	var specs []scenario.Spec
	if strings.EqualFold(opts.scenario, "all") {
		specs = cfg.Scenarios
	} else {
		s, ok := cfg.Find(opts.scenario)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (have %s)", opts.scenario, strings.Join(cfg.IDs(), ", "))
		}
		specs = []scenario.Spec{s}
	}

	jobs := make([]batchJob, 0, len(specs))
	for _, s := range specs {
		tune, err := s.Apply(base)
		if err != nil {
			return nil, err
		}
		if err := opts.overrides.apply(cmd, &tune); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.ID, err)
		}
		n := s.Runs
		if cmd.Flags().Changed("count") {
			n = opts.n
		}
		jobs = append(jobs, batchJob{scenario: s.ID, tune: tune, n: n})
	}
	return jobs, nil
}

func (a *App) runBatch(ctx context.Context, opts *batchOptions, job batchJob, idx *indexdb.SQLiteIndex) (batchSummary, error) {
	logger := a.logger()
	var (
		mu      sync.Mutex
		loggers []*persistlog.StepLogger
	)
	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	bopts := batch.Options{
		Base:        job.tune,
		Seeds:       batch.Seeds(job.tune.World.Seed, job.n),
		Concurrency: concurrency,
		Observers: func(info explore.RunInfo) []explore.Observer {
			var obs []explore.Observer
			if opts.logDir != "" {
				sl := persistlog.NewStepLogger(opts.logDir, info)
				mu.Lock()
				loggers = append(loggers, sl)
				mu.Unlock()
				obs = append(obs, sl)
			}
			if idx != nil {
				obs = append(obs, idx.StepObserver(info.RunID))
			}
			return obs
		},
		Done: func(rr batch.RunReport) {
			if rr.Err == nil && idx != nil {
				idx.RecordRun(rr.Result.Summary(rr.Info), "")
			}
		},
	}
	if !a.quiet {
		bopts.Logger = logger
	}

	rep, err := batch.Run(ctx, bopts)
	for _, sl := range loggers {
		if cerr := sl.Close(); cerr != nil {
			logger.Printf("step log %s: %v", sl.Path(), cerr)
		}
	}
	return batchSummary{
		Scenario:          job.scenario,
		Runs:              len(rep.Runs),
		Reached:           rep.Reached,
		Exhausted:         rep.Exhausted,
		Failed:            rep.Failed,
		SuccessRate:       rep.SuccessRate,
		MeanSteps:         rep.MeanSteps,
		StdDevSteps:       rep.StdDevSteps,
		MeanKnownFraction: rep.MeanKnownFraction,
	}, err
}
