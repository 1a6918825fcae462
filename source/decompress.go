package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// decompress expands an archived capture into the raw telemetry bytes.
// CompressionNone returns the input untouched.
func decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		return gunzip(data)
	case CompressionZstd:
		return unzstd(data)
	case CompressionLZ4:
		return unlz4(data)
	case CompressionS2:
		return uns2(data)
	default:
		return nil, fmt.Errorf("unsupported capture compression: %s", compression)
	}
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip capture: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip capture: %w", err)
	}

	return raw, nil
}

func unlz4(data []byte) ([]byte, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 capture: %w", err)
	}

	return raw, nil
}

func uns2(data []byte) ([]byte, error) {
	raw, err := io.ReadAll(s2.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("s2 capture: %w", err)
	}

	return raw, nil
}
