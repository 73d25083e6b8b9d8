package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"gridscout.ai/internal/sim/explore"
)

// JSONLZstdWriter appends one JSON object per line to a zstd-compressed
// file. The file is created on first write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

// Lines is the number of records written so far.
func (w *JSONLZstdWriter) Lines() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// PathForRun is where a run's step log lives under dir.
func PathForRun(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.jsonl.zst", runID))
}

// StepLogger writes every step of a run, then its summary, to a step log.
// The file is closed once the summary is written. Write errors do not stop
// the run; the first one is kept for Err.
type StepLogger struct {
	w    *JSONLZstdWriter
	info explore.RunInfo

	mu  sync.Mutex
	err error
}

func NewStepLogger(dir string, info explore.RunInfo) *StepLogger {
	return &StepLogger{w: NewJSONLZstdWriter(PathForRun(dir, info.RunID)), info: info}
}

func (l *StepLogger) Path() string { return l.w.Path() }

func (l *StepLogger) ObserveStep(ev explore.StepEvent) {
	l.record(l.w.Write(ev.Message(l.info.RunID)))
}

func (l *StepLogger) ObserveResult(res explore.Result) {
	l.record(l.w.Write(res.Summary(l.info)))
	l.record(l.w.Close())
}

// Close flushes a log whose run never finished. It is safe to call after
// the summary was written.
func (l *StepLogger) Close() error {
	l.record(l.w.Close())
	return l.Err()
}

func (l *StepLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *StepLogger) record(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
}
