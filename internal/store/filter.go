// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const filterGzip = "gzip"

// Compression selects whether, and how hard, leaf payloads are compressed.
type Compression struct {
	Enabled bool
	// Level is the gzip level, from 0 (store only) to 9 (best compression).
	Level int
}

// NoCompression leaves payloads as they are.
var NoCompression = Compression{}

// Validate returns an error if the compression level is out of range.
func (c Compression) Validate() error {
	if c.Enabled && (c.Level < gzip.NoCompression || c.Level > gzip.BestCompression) {
		return fmt.Errorf("compression level must be between %d and %d, not %d", gzip.NoCompression, gzip.BestCompression, c.Level)
	}
	return nil
}

func compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
