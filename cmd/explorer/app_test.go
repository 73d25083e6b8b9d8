package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gridscout.ai/internal/protocol"
	"gridscout.ai/internal/sim/tuning"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	err := app.ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func TestApp_Version(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "explorer version") {
		t.Fatalf("version output=%q", out)
	}
}

func TestApp_Help(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, sub := range []string{"run", "batch", "serve", "replay", "runs"} {
		if !strings.Contains(out, sub) {
			t.Fatalf("help missing %q:\n%s", sub, out)
		}
	}
}

func TestApp_RunOpenGrid(t *testing.T) {
	out, err := run(t, "run", "-q", "--tuning", "../../configs/tuning.yaml",
		"--rows", "5", "--cols", "5", "-p", "0", "-r", "5")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "REACHED after 8 steps") {
		t.Fatalf("run output:\n%s", out)
	}
	// Start, goal and seven path cells; nothing left unknown.
	if strings.Count(out, "*") != 7 || strings.Contains(out, "?") {
		t.Fatalf("map not fully annotated:\n%s", out)
	}
}

func TestApp_RunRejectsBadOverride(t *testing.T) {
	_, err := run(t, "run", "-q", "--max-steps", "0")
	if !errors.Is(err, tuning.ErrConfig) {
		t.Fatalf("err=%v want config error", err)
	}
	_, err = run(t, "run", "-q", "--policy", "sideways")
	if !errors.Is(err, tuning.ErrConfig) {
		t.Fatalf("err=%v want config error", err)
	}
}

func TestApp_MissingExplicitTuning(t *testing.T) {
	if _, err := run(t, "run", "-q", "--tuning", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing tuning file")
	}
}

func TestApp_RunArtefactsReplayAndList(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	snapPath := filepath.Join(dir, "run.snap.zst")
	dbPath := filepath.Join(dir, "index.db")

	out, err := run(t, "run", "-q", "--json", "--rows", "10", "--cols", "10", "-p", "0.25", "--seed", "9",
		"-r", "2", "--policy", "frontier", "--log-dir", logDir, "--snapshot", snapPath, "--db", dbPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var sum protocol.SummaryMsg
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if sum.Outcome != "REACHED" || sum.Seed != 9 || sum.RunID == "" {
		t.Fatalf("summary=%+v", sum)
	}

	out, err = run(t, "replay", snapPath, "--verify", "--log", filepath.Join(logDir, sum.RunID+".jsonl.zst"))
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "verify: ok") || !strings.Contains(out, "steps match") {
		t.Fatalf("replay output:\n%s", out)
	}

	out, err = run(t, "runs", "--db", dbPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, sum.RunID) || !strings.Contains(out, "REACHED") {
		t.Fatalf("runs output:\n%s", out)
	}
}

func TestApp_Batch(t *testing.T) {
	out, err := run(t, "batch", "-q", "--json", "-n", "6", "--concurrency", "3",
		"--rows", "10", "--cols", "10", "-r", "2", "--policy", "frontier")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var sum batchSummary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if sum.Runs != 6 || sum.Reached != 6 || sum.SuccessRate != 1 {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestApp_ServeFixedRuns(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "serve", "-q", "--addr", "127.0.0.1:0", "--runs", "2", "--step-delay", "0", "--pause", "0",
		"--rows", "6", "--cols", "6", "-r", "6", "--snapshot-dir", dir)
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if len(matches) != 2 {
		t.Fatalf("snapshots=%v want 2", matches)
	}
}

func TestApp_BatchScenarios(t *testing.T) {
	out, err := run(t, "batch", "-q", "--json", "--scenarios", "../../configs/scenarios.yaml",
		"--scenario", "all", "-n", "2", "--rows", "8", "--cols", "8")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var sums []batchSummary
	if err := json.Unmarshal([]byte(out), &sums); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(sums) < 2 {
		t.Fatalf("scenarios=%d want several", len(sums))
	}
	for _, s := range sums {
		if s.Scenario == "" || s.Runs != 2 {
			t.Fatalf("summary=%+v", s)
		}
	}

	if _, err := run(t, "batch", "-q", "--scenarios", "../../configs/scenarios.yaml", "--scenario", "nope"); err == nil {
		t.Fatalf("expected unknown scenario error")
	}
}
