// Package encoding packs grid cells into a compact text form for the wire
// and for snapshots.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"gridscout.ai/internal/sim/grid"
)

// EncodeCells run-length encodes cells in row-major order as
// base64(uvarint cell, uvarint run) pairs.
func EncodeCells(cells []grid.Cell) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(cells); {
		c := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == c; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeCells reverses EncodeCells. want bounds the decoded length so a
// corrupt run cannot allocate without limit; pass the expected cell count.
func DecodeCells(b64 string, want int) ([]grid.Cell, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]grid.Cell, 0, want)
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n

		c := grid.Cell(v)
		if v > 0xFF || !c.Valid() {
			return nil, fmt.Errorf("bad cell value %d", v)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("run of %d overflows %d cells", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, c)
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(out), want)
	}
	return out, nil
}

func EncodeGrid(g *grid.Grid) string { return EncodeCells(g.Cells()) }

func DecodeGrid(rows, cols int, b64 string) (*grid.Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("bad dimensions %dx%d", rows, cols)
	}
	cells, err := DecodeCells(b64, rows*cols)
	if err != nil {
		return nil, err
	}
	return grid.FromCells(rows, cols, cells)
}
