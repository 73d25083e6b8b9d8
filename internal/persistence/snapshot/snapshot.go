package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"gridscout.ai/internal/sim/encoding"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/grid"
	"gridscout.ai/internal/sim/worldgen"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Steps   int    `json:"steps"`
}

// SnapshotV1 is a finished (or cancelled) run: enough to render it again
// and to regenerate its world from the seed.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed                int64   `json:"seed"`
	Rows                int     `json:"rows"`
	Cols                int     `json:"cols"`
	ObstacleProbability float64 `json:"obstacle_probability"`
	MaxAttempts         int     `json:"max_attempts"`
	Attempts            int     `json:"attempts"`

	SensorRange  int    `json:"sensor_range"`
	MaxSteps     int    `json:"max_steps"`
	NoPathPolicy string `json:"no_path_policy"`

	Start [2]int `json:"start"`
	Goal  [2]int `json:"goal"`

	Outcome string `json:"outcome"`

	// Truth and Belief are row-major cells, RLE encoded.
	Truth  string `json:"truth"`
	Belief string `json:"belief"`

	History [][2]int `json:"history"`
}

// Capture builds a snapshot from a run result and the world it ran in.
func Capture(info explore.RunInfo, p worldgen.Params, w worldgen.World, res explore.Result) SnapshotV1 {
	snap := SnapshotV1{
		Header:              Header{Version: Version, RunID: info.RunID, Steps: res.Steps},
		Seed:                p.Seed,
		Rows:                w.Truth.Rows(),
		Cols:                w.Truth.Cols(),
		ObstacleProbability: p.ObstacleProbability,
		MaxAttempts:         p.MaxAttempts,
		Attempts:            w.Attempts,
		SensorRange:         info.Config.SensorRange,
		MaxSteps:            info.Config.MaxSteps,
		NoPathPolicy:        info.Config.NoPath.String(),
		Start:               [2]int{w.Start.Row, w.Start.Col},
		Goal:                [2]int{w.Goal.Row, w.Goal.Col},
		Outcome:             res.State.String(),
		Truth:               encoding.EncodeGrid(w.Truth),
		History:             make([][2]int, len(res.History)),
	}
	if res.Belief != nil {
		snap.Belief = encoding.EncodeGrid(res.Belief)
	}
	for i, p := range res.History {
		snap.History[i] = [2]int{p.Row, p.Col}
	}
	return snap
}

// Grids decodes the stored truth and belief maps.
func (s SnapshotV1) Grids() (truth, belief *grid.Grid, err error) {
	truth, err = encoding.DecodeGrid(s.Rows, s.Cols, s.Truth)
	if err != nil {
		return nil, nil, fmt.Errorf("truth: %w", err)
	}
	belief, err = encoding.DecodeGrid(s.Rows, s.Cols, s.Belief)
	if err != nil {
		return nil, nil, fmt.Errorf("belief: %w", err)
	}
	return truth, belief, nil
}

// WorldParams are the generator inputs that reproduce the stored truth.
func (s SnapshotV1) WorldParams() worldgen.Params {
	return worldgen.Params{
		Rows:                s.Rows,
		Cols:                s.Cols,
		ObstacleProbability: s.ObstacleProbability,
		Seed:                s.Seed,
		MaxAttempts:         s.MaxAttempts,
	}
}

// Config is the loop configuration the run used.
func (s SnapshotV1) Config() (explore.Config, error) {
	pol, err := explore.ParsePolicy(s.NoPathPolicy)
	if err != nil {
		return explore.Config{}, err
	}
	return explore.Config{SensorRange: s.SensorRange, MaxSteps: s.MaxSteps, NoPath: pol}, nil
}

func (s SnapshotV1) StartGoal() (start, goal grid.Pos) {
	return grid.Pos{Row: s.Start[0], Col: s.Start[1]}, grid.Pos{Row: s.Goal[0], Col: s.Goal[1]}
}

func (s SnapshotV1) Path() []grid.Pos {
	out := make([]grid.Pos, len(s.History))
	for i, h := range s.History {
		out[i] = grid.Pos{Row: h[0], Col: h[1]}
	}
	return out
}

func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
