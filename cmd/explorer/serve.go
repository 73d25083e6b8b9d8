package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"gridscout.ai/internal/metrics"
	"gridscout.ai/internal/persistence/indexdb"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/tuning"
	"gridscout.ai/internal/transport/observer"
)

type serveOptions struct {
	overrides   overrideFlags
	addr        string
	stepDelay   time.Duration
	pause       time.Duration
	runs        int
	logDir      string
	snapshotDir string
	dbPath      string
	allowRemote bool
}

func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run explorations continuously and stream them over websocket",
		Long: `Run one exploration after another, each on the next seed, and stream every
step to websocket observers at /v1/stream. /v1/bootstrap returns the current
run and map, /metrics exposes Prometheus metrics.

Examples:
  explorer serve --addr 127.0.0.1:8080 --step-delay 50ms --policy frontier`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tune, err := a.loadTuning()
			if err != nil {
				return err
			}
			if err := opts.overrides.apply(cmd, &tune); err != nil {
				return err
			}
			return a.serve(cmd.Context(), opts, tune)
		},
	}
	opts.overrides.register(cmd)
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:8080", "http listen address")
	cmd.Flags().DurationVar(&opts.stepDelay, "step-delay", 100*time.Millisecond, "pause after each step so observers can follow")
	cmd.Flags().DurationVar(&opts.pause, "pause", 2*time.Second, "pause between runs")
	cmd.Flags().IntVar(&opts.runs, "runs", 0, "stop after this many runs (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "write one zstd JSONL step log per run under this directory")
	cmd.Flags().StringVar(&opts.snapshotDir, "snapshot-dir", "", "write one snapshot per run under this directory")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "record every run in this sqlite index")
	cmd.Flags().BoolVar(&opts.allowRemote, "allow-remote", false, "serve observer endpoints to non-loopback clients")
	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions, tune tuning.Tuning) error {
	logger := a.logger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

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

	hub := observer.NewHub()
	obsSrv := observer.NewServer(hub, logger)
	obsSrv.AllowRemote = opts.allowRemote

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	obsSrv.Routes(mux)

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	defer func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	sinks := sinkOptions{logDir: opts.logDir, idx: idx}
	if opts.snapshotDir != "" {
		sinks.snapshotPath = func(runID string) string {
			return filepath.Join(opts.snapshotDir, runID+".snap.zst")
		}
	}
	extra := func(info explore.RunInfo, r *explore.Run) []explore.Observer {
		return []explore.Observer{hub.Track(info, r), pacer{ctx: ctx, d: opts.stepDelay}}
	}

	baseSeed := tune.World.Seed
	for i := 0; opts.runs <= 0 || i < opts.runs; i++ {
		tune.World.Seed = baseSeed + int64(i)
		out, err := a.simulate(ctx, tune, sinks, logger, extra, m)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			// An unsolvable seed is not fatal to the server.
			logger.Printf("seed=%d: %v", tune.World.Seed, err)
		} else {
			logger.Printf("run=%s %s in %d steps", out.info.RunID, out.result.State, out.result.Steps)
		}
		if opts.runs > 0 && i == opts.runs-1 {
			break
		}
		if !sleepCtx(ctx, opts.pause) {
			return nil
		}
		select {
		case err, ok := <-serveErr:
			if ok {
				return err
			}
		default:
		}
	}
	return nil
}

// pacer slows a run down so streamed steps are watchable.
type pacer struct {
	ctx context.Context
	d   time.Duration
}

func (p pacer) ObserveStep(explore.StepEvent) { sleepCtx(p.ctx, p.d) }
func (p pacer) ObserveResult(explore.Result)  {}

// sleepCtx reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
