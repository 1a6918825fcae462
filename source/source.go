// Package source loads raw instrument capture files into immutable,
// randomly addressable byte buffers for one decode pass.
//
// Multi-month deployments are routinely archived compressed; Open sniffs
// gzip, Zstandard, LZ4 and S2 magic bytes and transparently expands the
// capture, so every downstream stage sees the same raw telemetry bytes
// regardless of how the file was stored.
//
// A Buffer is created once per file and must be treated as read-only for
// the duration of a decode pass. Nothing in this module mutates it;
// independent files may therefore be decoded by parallel workers with no
// locking.
package source

import (
	"fmt"
	"os"

	"github.com/oceanum/ensemble/errs"
)

// Buffer is the immutable whole-file byte source for one decode pass.
type Buffer struct {
	data        []byte
	path        string
	compression Compression
}

// Open reads the file at path into memory, expanding any recognised archive
// compression. Exactly one file read is performed.
func Open(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	buf, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", path, err)
	}
	buf.path = path

	return buf, nil
}

// FromBytes wraps an in-memory capture, expanding any recognised archive
// compression first.
func FromBytes(data []byte) (*Buffer, error) {
	compression := Sniff(data)

	raw, err := decompress(data, compression)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errs.ErrEmptyBuffer
	}

	return &Buffer{data: raw, compression: compression}, nil
}

// Bytes returns the raw telemetry bytes. The slice is shared, not copied;
// callers must not modify it.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Path returns the originating file path, empty for in-memory buffers.
func (b *Buffer) Path() string {
	return b.path
}

// Compression reports the archive compression the capture was stored with.
func (b *Buffer) Compression() Compression {
	return b.compression
}
