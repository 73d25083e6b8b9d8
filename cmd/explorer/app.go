package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridscout.ai/internal/sim/tuning"
)

// Version information set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

const defaultTuningPath = "./configs/tuning.yaml"

type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	tuningPath string
	quiet      bool
}

func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "explorer",
		Short: "Grid-world exploration simulator",
		Long: `explorer drops an agent into a randomly generated grid it cannot see,
lets it sense a square neighbourhood each step, fuses what it sees into its
own map and walks A* paths toward the goal until it arrives or runs out of
steps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVar(&app.tuningPath, "tuning", defaultTuningPath, "path to tuning.yaml (built-in defaults if the default path is missing)")
	app.root.PersistentFlags().BoolVarP(&app.quiet, "quiet", "q", false, "suppress progress logging")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newRunCmd(),
		app.newBatchCmd(),
		app.newServeCmd(),
		app.newReplayCmd(),
		app.newRunsCmd(),
	)
	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) logger() *log.Logger {
	if a.quiet {
		return log.New(io.Discard, "", 0)
	}
	return log.New(a.stderr, "[explorer] ", log.LstdFlags|log.Lmicroseconds)
}

// loadTuning reads the tuning file. A missing file at the default path
// falls back to built-in defaults; any other path must exist.
func (a *App) loadTuning() (tuning.Tuning, error) {
	t, err := tuning.Load(a.tuningPath)
	if err != nil && a.tuningPath == defaultTuningPath && errors.Is(err, fs.ErrNotExist) {
		return tuning.Defaults(), nil
	}
	return t, err
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "explorer version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
		},
	}
}
