package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"gridscout.ai/internal/protocol"
	"gridscout.ai/internal/sim/explore"
	"gridscout.ai/internal/sim/tuning"
)

const schemaVersion = "1"

// SQLiteIndex is a queryable secondary index of runs and their steps. Writes
// go through one goroutine in batched transactions; the JSONL step logs stay
// the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStep atomic.Uint64
	dropRun  atomic.Uint64
}

type reqKind int

const (
	reqStep reqKind = iota + 1
	reqRun
	reqSync
)

type req struct {
	kind reqKind

	step protocol.StepMsg
	run  runRow
	done chan struct{}
}

type runRow struct {
	Summary      protocol.SummaryMsg
	SnapshotPath string
	RecordedAt   string
}

// Stats counts requests dropped because the writer fell behind.
type Stats struct {
	DropStepTotal uint64
	DropRunTotal  uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Large runs emit one request per step; keep the run loop from stalling.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tunings (
			digest TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			grid_rows INTEGER NOT NULL,
			grid_cols INTEGER NOT NULL,
			sensor_range INTEGER NOT NULL,
			max_steps INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			steps INTEGER NOT NULL,
			history_len INTEGER NOT NULL,
			known_cells INTEGER NOT NULL,
			snapshot_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_recorded_at ON runs(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			state TEXT NOT NULL,
			pos_row INTEGER NOT NULL,
			pos_col INTEGER NOT NULL,
			moved INTEGER NOT NULL,
			path_len INTEGER NOT NULL,
			learned INTEGER NOT NULL,
			known INTEGER NOT NULL,
			expanded INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropStepTotal: s.dropStep.Load(),
		DropRunTotal:  s.dropRun.Load(),
	}
}

// WriteStep queues one step row. It never blocks.
func (s *SQLiteIndex) WriteStep(m protocol.StepMsg) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqStep, step: m}:
	default:
		s.dropStep.Add(1)
	}
}

// RecordRun queues the summary row of a finished run.
func (s *SQLiteIndex) RecordRun(sum protocol.SummaryMsg, snapshotPath string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := runRow{
		Summary:      sum,
		SnapshotPath: snapshotPath,
		RecordedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

// Sync blocks until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StepObserver adapts the index to an explore.Observer for one run.
func (s *SQLiteIndex) StepObserver(runID string) explore.Observer {
	return stepObserver{s: s, runID: runID}
}

type stepObserver struct {
	s     *SQLiteIndex
	runID string
}

func (o stepObserver) ObserveStep(ev explore.StepEvent) { o.s.WriteStep(ev.Message(o.runID)) }
func (o stepObserver) ObserveResult(explore.Result)     {}

// UpsertTuning stores the tuning a process runs with, keyed by digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) (string, error) {
	if s == nil {
		return "", nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(`INSERT OR REPLACE INTO tunings(digest,json,updated_at) VALUES(?,?,?)`, digest, string(b), now); err != nil {
		return "", err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('tuning_digest',?)`, digest); err != nil {
		return "", err
	}
	return digest, tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,step,state,pos_row,pos_col,moved,path_len,learned,known,expanded) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,seed,grid_rows,grid_cols,sensor_range,max_steps,attempts,outcome,steps,history_len,known_cells,snapshot_path,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertStep != nil {
			_ = insertStep.Close()
		}
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStep:
			m := r.step
			if insertStep != nil {
				if _, err := tx.Stmt(insertStep).Exec(
					m.RunID,
					m.Step,
					m.State,
					m.Pos[0], m.Pos[1],
					boolInt(m.Moved),
					m.PathLen,
					m.Learned,
					m.Known,
					m.Expanded,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqRun:
			sum := r.run.Summary
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					sum.RunID,
					sum.Seed,
					sum.Rows,
					sum.Cols,
					sum.SensorRange,
					sum.MaxSteps,
					sum.Attempts,
					sum.Outcome,
					sum.Steps,
					len(sum.History),
					sum.KnownCells,
					r.run.SnapshotPath,
					r.run.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
