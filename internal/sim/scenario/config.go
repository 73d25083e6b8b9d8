// Package scenario loads named presets layered over the base tuning, used to
// sweep batch runs across world sizes, densities and agent settings.
package scenario

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gridscout.ai/internal/sim/tuning"
)

type Config struct {
	DefaultScenarioID string `yaml:"default_scenario_id"`
	Scenarios         []Spec `yaml:"scenarios"`
}

// Spec overrides base tuning. Zero or nil fields inherit the base value;
// pointers mark fields where zero is meaningful.
type Spec struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`

	Rows                int      `yaml:"rows,omitempty"`
	Cols                int      `yaml:"cols,omitempty"`
	ObstacleProbability *float64 `yaml:"obstacle_probability,omitempty"`
	SeedOffset          int64    `yaml:"seed_offset,omitempty"`

	SensorRange  *int   `yaml:"sensor_range,omitempty"`
	MaxSteps     int    `yaml:"max_steps,omitempty"`
	NoPathPolicy string `yaml:"no_path_policy,omitempty"`

	// Runs is the default batch size for this scenario.
	Runs int `yaml:"runs,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("scenarios.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("scenarios.yaml: %w", err)
	}
	return cfg, nil
}

func ptr[T any](v T) *T { return &v }

func defaults() Config {
	return Config{
		DefaultScenarioID: "CLUTTERED",
		Scenarios: []Spec{
			{ID: "OPEN", Description: "no obstacles", ObstacleProbability: ptr(0.0), Runs: 20},
			{ID: "CLUTTERED", Description: "base tuning", Runs: 50},
			{ID: "DENSE", ObstacleProbability: ptr(0.4), NoPathPolicy: tuning.PolicyFrontier, Runs: 50},
			{ID: "MYOPIC", SensorRange: ptr(1), NoPathPolicy: tuning.PolicyFrontier, Runs: 50},
			{ID: "OMNISCIENT", SensorRange: ptr(1 << 16), Runs: 20},
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		s.ID = strings.ToUpper(strings.TrimSpace(s.ID))
		s.NoPathPolicy = strings.ToUpper(strings.TrimSpace(s.NoPathPolicy))
		if s.Runs <= 0 {
			s.Runs = 20
		}
	}
	c.DefaultScenarioID = strings.ToUpper(strings.TrimSpace(c.DefaultScenarioID))
	if c.DefaultScenarioID == "" && len(c.Scenarios) > 0 {
		c.DefaultScenarioID = c.Scenarios[0].ID
	}
}

// Validate checks the file on its own. Field ranges are checked again
// against the merged tuning by Apply.
func (c Config) Validate() error {
	c.Normalize()
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("scenarios must not be empty")
	}
	seen := map[string]bool{}
	for _, s := range c.Scenarios {
		if s.ID == "" {
			return fmt.Errorf("scenario id must not be empty")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate scenario id: %s", s.ID)
		}
		seen[s.ID] = true
		if s.Rows < 0 || s.Cols < 0 {
			return fmt.Errorf("scenario %s rows/cols must be >= 0", s.ID)
		}
		if s.MaxSteps < 0 {
			return fmt.Errorf("scenario %s max_steps must be >= 0", s.ID)
		}
	}
	if !seen[c.DefaultScenarioID] {
		return fmt.Errorf("default_scenario_id %q not found in scenarios", c.DefaultScenarioID)
	}
	return nil
}

func (c Config) Find(id string) (Spec, bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	for _, s := range c.Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// IDs lists scenario ids in sorted order.
func (c Config) IDs() []string {
	out := make([]string, 0, len(c.Scenarios))
	for _, s := range c.Scenarios {
		out = append(out, s.ID)
	}
	sort.Strings(out)
	return out
}

// Apply layers s over base and validates the result.
func (s Spec) Apply(base tuning.Tuning) (tuning.Tuning, error) {
	t := base
	if s.Rows > 0 {
		t.World.Rows = s.Rows
	}
	if s.Cols > 0 {
		t.World.Cols = s.Cols
	}
	if s.ObstacleProbability != nil {
		t.World.ObstacleProbability = *s.ObstacleProbability
	}
	t.World.Seed += s.SeedOffset
	if s.SensorRange != nil {
		t.Agent.SensorRange = *s.SensorRange
	}
	if s.MaxSteps > 0 {
		t.Agent.MaxSteps = s.MaxSteps
	}
	if s.NoPathPolicy != "" {
		t.Agent.NoPathPolicy = s.NoPathPolicy
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("scenario %s: %w", s.ID, err)
	}
	return t, nil
}
