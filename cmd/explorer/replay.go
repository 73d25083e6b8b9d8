package main

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	persistlog "gridscout.ai/internal/persistence/log"
	"gridscout.ai/internal/persistence/snapshot"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/worldgen"
)

type replayOptions struct {
	verify  bool
	logPath string
	truth   bool
}

func (a *App) newReplayCmd() *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <snapshot>",
		Short: "Render a stored run and optionally verify it is reproducible",
		Long: `Load a run snapshot and print the agent's final map with its path.

--verify regenerates the world from the stored seed and parameters, runs the
exploration again and checks that the world, path and outcome match.
--log checks a step log against the snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.replay(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "regenerate and re-run, then compare")
	cmd.Flags().StringVar(&opts.logPath, "log", "", "step log (.jsonl.zst) of the same run to check")
	cmd.Flags().BoolVar(&opts.truth, "truth", false, "also print the hidden world")
	return cmd
}

func (a *App) replay(ctx context.Context, path string, opts *replayOptions) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	truth, belief, err := snap.Grids()
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	hist := snap.Path()

	fmt.Fprintf(a.stdout, "snapshot v%d run=%s seed=%d world=%dx%d p=%.2f range=%d policy=%s outcome=%s steps=%d (%s)\n",
		snap.Header.Version, snap.Header.RunID, snap.Seed, snap.Rows, snap.Cols, snap.ObstacleProbability,
		snap.SensorRange, snap.NoPathPolicy, snap.Outcome, snap.Header.Steps, fileSize(path))
	if opts.truth {
		fmt.Fprint(a.stdout, grid.AnnotatePath(truth, hist).Render())
		fmt.Fprintln(a.stdout)
	}
	fmt.Fprint(a.stdout, grid.AnnotatePath(belief, hist).Render())

	if opts.logPath != "" {
		steps, sum, err := persistlog.ReadSteps(opts.logPath)
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
		if len(steps) != snap.Header.Steps {
			return fmt.Errorf("log has %d steps, snapshot %d", len(steps), snap.Header.Steps)
		}
		if sum != nil && (sum.RunID != snap.Header.RunID || sum.Outcome != snap.Outcome) {
			return fmt.Errorf("log summary run=%s outcome=%s does not match snapshot", sum.RunID, sum.Outcome)
		}
		fmt.Fprintf(a.stdout, "log: %d steps match\n", len(steps))
	}

	if !opts.verify {
		return nil
	}
	w, err := worldgen.Generate(snap.WorldParams())
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !w.Truth.Equal(truth) {
		return fmt.Errorf("verify: regenerated world differs from snapshot")
	}
	cfg, err := snap.Config()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	res, err := explore.Execute(ctx, cfg, w.Truth, w.Start, w.Goal)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if diff := cmp.Diff(hist, res.History); diff != "" {
		return fmt.Errorf("verify: path differs (-stored +replayed):\n%s", diff)
	}
	if res.State.String() != snap.Outcome {
		return fmt.Errorf("verify: outcome %s, stored %s", res.State, snap.Outcome)
	}
	fmt.Fprintln(a.stdout, "verify: ok")
	return nil
}
