package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"gridscout.ai/internal/protocol"
)

// ReadSteps decodes a step log. summary is nil when the run did not finish
// (the log was cut short or the run was cancelled).
func ReadSteps(path string) (steps []protocol.StepMsg, summary *protocol.SummaryMsg, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		base, err := protocol.DecodeBase(b)
		if err != nil {
			return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		switch base.Type {
		case protocol.TypeStep:
			var m protocol.StepMsg
			if err := json.Unmarshal(b, &m); err != nil {
				return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			steps = append(steps, m)
		case protocol.TypeSummary:
			var m protocol.SummaryMsg
			if err := json.Unmarshal(b, &m); err != nil {
				return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			summary = &m
		default:
			return nil, nil, fmt.Errorf("%s:%d: unknown message type %q", path, line, base.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return steps, summary, nil
}
