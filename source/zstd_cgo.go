//go:build cgo

package source

import (
	"fmt"

	"github.com/valyala/gozstd"
)

// unzstd expands a Zstandard frame using the cgo-backed implementation.
func unzstd(data []byte) ([]byte, error) {
	raw, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd capture: %w", err)
	}

	return raw, nil
}
