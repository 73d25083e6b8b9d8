package tuning

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("tuning.schema.json", schemaJSON)

const (
	PolicyWait     = "WAIT"
	PolicyStop     = "STOP"
	PolicyFrontier = "FRONTIER"
)

type Tuning struct {
	World World `yaml:"world" json:"world"`
	Agent Agent `yaml:"agent" json:"agent"`
}

type World struct {
	Rows                int     `yaml:"rows" json:"rows"`
	Cols                int     `yaml:"cols" json:"cols"`
	ObstacleProbability float64 `yaml:"obstacle_probability" json:"obstacle_probability"`
	Seed                int64   `yaml:"seed" json:"seed"`
	MaxAttempts         int     `yaml:"max_attempts" json:"max_attempts"`
}

type Agent struct {
	SensorRange  int    `yaml:"sensor_range" json:"sensor_range"`
	MaxSteps     int    `yaml:"max_steps" json:"max_steps"`
	NoPathPolicy string `yaml:"no_path_policy" json:"no_path_policy"`
}

func Defaults() Tuning {
	return Tuning{
		World: World{
			Rows:                20,
			Cols:                20,
			ObstacleProbability: 0.25,
			Seed:                1337,
			MaxAttempts:         1000,
		},
		Agent: Agent{
			SensorRange:  2,
			MaxSteps:     1000,
			NoPathPolicy: PolicyWait,
		},
	}
}

// Load overlays the YAML file at path onto Defaults. An empty path returns
// the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := CheckSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", &ConfigError{Field: "document", Reason: err.Error()})
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// CheckSchema validates a raw YAML document against the embedded JSON
// Schema. It catches unknown keys and wrong types before decoding; value
// ranges are left to Validate.
func CheckSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.Agent.NoPathPolicy = strings.ToUpper(strings.TrimSpace(t.Agent.NoPathPolicy))
	if t.Agent.NoPathPolicy == "" {
		t.Agent.NoPathPolicy = PolicyWait
	}
	if t.World.MaxAttempts == 0 {
		t.World.MaxAttempts = Defaults().World.MaxAttempts
	}
}

var ErrConfig = errors.New("invalid configuration")

// ConfigError names the offending field. It is returned before any
// simulation step runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

func (t Tuning) Validate() error {
	if err := t.World.Validate(); err != nil {
		return err
	}
	return t.Agent.Validate()
}

func (w World) Validate() error {
	if w.Rows < 1 {
		return &ConfigError{Field: "rows", Reason: fmt.Sprintf("must be >= 1, got %d", w.Rows)}
	}
	if w.Cols < 1 {
		return &ConfigError{Field: "cols", Reason: fmt.Sprintf("must be >= 1, got %d", w.Cols)}
	}
	// NaN fails both comparisons, so test the accepted range directly.
	if !(w.ObstacleProbability >= 0 && w.ObstacleProbability < 1) {
		return &ConfigError{Field: "obstacle_probability", Reason: fmt.Sprintf("must be in [0,1), got %v", w.ObstacleProbability)}
	}
	if w.MaxAttempts < 1 {
		return &ConfigError{Field: "max_attempts", Reason: fmt.Sprintf("must be >= 1, got %d", w.MaxAttempts)}
	}
	return nil
}

func (a Agent) Validate() error {
	if a.SensorRange < 0 {
		return &ConfigError{Field: "sensor_range", Reason: fmt.Sprintf("must be >= 0, got %d", a.SensorRange)}
	}
	if a.MaxSteps < 1 {
		return &ConfigError{Field: "max_steps", Reason: fmt.Sprintf("must be >= 1, got %d", a.MaxSteps)}
	}
	switch strings.ToUpper(a.NoPathPolicy) {
	case PolicyWait, PolicyStop, PolicyFrontier:
	default:
		return &ConfigError{Field: "no_path_policy", Reason: fmt.Sprintf("must be one of %s, %s, %s, got %q", PolicyWait, PolicyStop, PolicyFrontier, a.NoPathPolicy)}
	}
	return nil
}
