package tuning

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	return p
}

func TestLoad_RepoConfig(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tune != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults(): %+v", tune)
	}
}

func TestLoad_EmptyPathIsDefaults(t *testing.T) {
	tune, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune != Defaults() {
		t.Fatalf("got %+v want defaults", tune)
	}
}

func TestLoad_OverlayKeepsDefaults(t *testing.T) {
	p := writeYAML(t, "agent:\n  sensor_range: 5\n  no_path_policy: stop\n")
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.Agent.SensorRange != 5 {
		t.Fatalf("sensor_range=%d want 5", tune.Agent.SensorRange)
	}
	if tune.Agent.NoPathPolicy != PolicyStop {
		t.Fatalf("no_path_policy=%q want %q", tune.Agent.NoPathPolicy, PolicyStop)
	}
	if tune.World != Defaults().World {
		t.Fatalf("world section should keep defaults, got %+v", tune.World)
	}
}

func TestLoad_UnknownKeyRejectedBySchema(t *testing.T) {
	p := writeYAML(t, "world:\n  rowz: 3\n")
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected schema error")
	}
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("schema failure should be a config error, got %v", err)
	}
}

func TestLoad_WrongTypeRejectedBySchema(t *testing.T) {
	p := writeYAML(t, "agent:\n  max_steps: lots\n")
	if _, err := Load(p); err == nil || !errors.Is(err, ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoad_RangeViolationNamesField(t *testing.T) {
	p := writeYAML(t, "world:\n  rows: 0\n")
	_, err := Load(p)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if ce.Field != "rows" {
		t.Fatalf("field=%q want rows", ce.Field)
	}
	if !strings.HasPrefix(err.Error(), "tuning.yaml: ") {
		t.Fatalf("error should carry file context: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		field string
		mut   func(*Tuning)
	}{
		{"rows", func(t *Tuning) { t.World.Rows = 0 }},
		{"cols", func(t *Tuning) { t.World.Cols = -2 }},
		{"obstacle_probability", func(t *Tuning) { t.World.ObstacleProbability = 1 }},
		{"obstacle_probability", func(t *Tuning) { t.World.ObstacleProbability = -0.01 }},
		{"obstacle_probability", func(t *Tuning) { t.World.ObstacleProbability = math.NaN() }},
		{"max_attempts", func(t *Tuning) { t.World.MaxAttempts = 0 }},
		{"sensor_range", func(t *Tuning) { t.Agent.SensorRange = -1 }},
		{"max_steps", func(t *Tuning) { t.Agent.MaxSteps = 0 }},
		{"no_path_policy", func(t *Tuning) { t.Agent.NoPathPolicy = "PANIC" }},
	}
	for _, tc := range cases {
		tune := Defaults()
		tc.mut(&tune)
		err := tune.Validate()
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != tc.field {
			t.Fatalf("%s: got %v", tc.field, err)
		}
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
