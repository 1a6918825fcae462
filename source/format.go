package source

// Compression identifies the archive compression wrapping a raw capture
// file, detected from magic bytes at offset zero.
type Compression uint8

const (
	CompressionNone Compression = 0x1 // CompressionNone represents an unwrapped raw capture.
	CompressionGzip Compression = 0x2 // CompressionGzip represents a gzip member stream.
	CompressionZstd Compression = 0x3 // CompressionZstd represents a Zstandard frame.
	CompressionLZ4  Compression = 0x4 // CompressionLZ4 represents an LZ4 frame.
	CompressionS2   Compression = 0x5 // CompressionS2 represents a framed S2/Snappy stream.
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionGzip:
		return "Gzip"
	case CompressionZstd:
		return "Zstd"
	case CompressionLZ4:
		return "LZ4"
	case CompressionS2:
		return "S2"
	default:
		return "Unknown"
	}
}

var magics = []struct {
	compression Compression
	magic       []byte
}{
	{CompressionGzip, []byte{0x1F, 0x8B}},
	{CompressionZstd, []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{CompressionLZ4, []byte{0x04, 0x22, 0x4D, 0x18}},
	// S2 streams open with either the S2 identifier ("S2sTwO") or, in
	// snappy-compatible framing, the snappy one ("sNaPpY"); the reader
	// accepts both.
	{CompressionS2, []byte{0xFF, 0x06, 0x00, 0x00, 0x53, 0x32, 0x73, 0x54, 0x77, 0x4F}},
	{CompressionS2, []byte{0xFF, 0x06, 0x00, 0x00, 0x73, 0x4E, 0x61, 0x50, 0x70, 0x59}},
}

// Sniff identifies the archive compression from the leading magic bytes.
// Telemetry protocol markers (0x7F, 0xA5) collide with none of the magics,
// so an unwrapped capture always sniffs as CompressionNone.
func Sniff(data []byte) Compression {
	for _, m := range magics {
		if len(data) >= len(m.magic) && string(data[:len(m.magic)]) == string(m.magic) {
			return m.compression
		}
	}

	return CompressionNone
}
