package indexdb

import (
	"context"
	"time"
)

// RunRow is one row of the runs table.
type RunRow struct {
	RunID        string
	Seed         int64
	Rows         int
	Cols         int
	SensorRange  int
	MaxSteps     int
	Attempts     int
	Outcome      string
	Steps        int
	HistoryLen   int
	KnownCells   int
	SnapshotPath string
	RecordedAt   time.Time
}

// Runs lists committed runs, newest first. limit <= 0 means no limit.
func (s *SQLiteIndex) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,seed,grid_rows,grid_cols,sensor_range,max_steps,attempts,outcome,steps,history_len,known_cells,snapshot_path,recorded_at
		FROM runs ORDER BY recorded_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			r  RunRow
			at string
		)
		if err := rows.Scan(&r.RunID, &r.Seed, &r.Rows, &r.Cols, &r.SensorRange, &r.MaxSteps, &r.Attempts,
			&r.Outcome, &r.Steps, &r.HistoryLen, &r.KnownCells, &r.SnapshotPath, &at); err != nil {
			return nil, err
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// StepCount is the number of indexed steps for a run.
func (s *SQLiteIndex) StepCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM steps WHERE run_id=?`, runID).Scan(&n)
	return n, err
}
