package main

import (
	"github.com/spf13/cobra"

	"gridscout.ai/internal/sim/tuning"
)

// overrideFlags are the tuning values every simulating command can override.
type overrideFlags struct {
	rows, cols  int
	prob        float64
	seed        int64
	maxAttempts int
	sensorRange int
	maxSteps    int
	policy      string
}

func (o *overrideFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.rows, "rows", 0, "grid rows (overrides tuning)")
	f.IntVar(&o.cols, "cols", 0, "grid columns (overrides tuning)")
	f.Float64VarP(&o.prob, "obstacle-prob", "p", 0, "obstacle probability in [0,1) (overrides tuning)")
	f.Int64Var(&o.seed, "seed", 0, "world seed (overrides tuning)")
	f.IntVar(&o.maxAttempts, "max-attempts", 0, "world sampling attempts (overrides tuning)")
	f.IntVarP(&o.sensorRange, "range", "r", 0, "sensor range (overrides tuning)")
	f.IntVar(&o.maxSteps, "max-steps", 0, "step budget (overrides tuning)")
	f.StringVar(&o.policy, "policy", "", "no-path policy: WAIT, STOP or FRONTIER (overrides tuning)")
}

// apply copies explicitly set flags onto t and revalidates.
func (o *overrideFlags) apply(cmd *cobra.Command, t *tuning.Tuning) error {
	f := cmd.Flags()
	if f.Changed("rows") {
		t.World.Rows = o.rows
	}
	if f.Changed("cols") {
		t.World.Cols = o.cols
	}
	if f.Changed("obstacle-prob") {
		t.World.ObstacleProbability = o.prob
	}
	if f.Changed("seed") {
		t.World.Seed = o.seed
	}
	if f.Changed("max-attempts") {
		t.World.MaxAttempts = o.maxAttempts
	}
	if f.Changed("range") {
		t.Agent.SensorRange = o.sensorRange
	}
	if f.Changed("max-steps") {
		t.Agent.MaxSteps = o.maxSteps
	}
	if f.Changed("policy") {
		t.Agent.NoPathPolicy = o.policy
	}
	t.Normalize()
	return t.Validate()
}
