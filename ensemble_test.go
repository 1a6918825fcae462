package ensemble_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oceanum/ensemble"
	"github.com/oceanum/ensemble/checksum"
	"github.com/oceanum/ensemble/errs"
)

var (
	le      = binary.LittleEndian
	wordSum = checksum.WordSum("paradopp", 0xB58C)
)

func bcd(v int) byte {
	return byte(v/10<<4 | v%10)
}

// currentMeterRecord builds one sync-byte velocity record with the given
// clock, enough of a capture to exercise the facade end to end.
func currentMeterRecord(clock time.Time) []byte {
	rec := make([]byte, 40)
	rec[0] = 0xA5
	rec[1] = 0x01
	le.PutUint16(rec[2:], 21) // size in words, checksum included
	rec[4] = bcd(clock.Minute())
	rec[5] = bcd(clock.Second())
	rec[6] = bcd(clock.Day())
	rec[7] = bcd(clock.Hour())
	rec[8] = bcd(clock.Year() % 100)
	rec[9] = bcd(int(clock.Month()))
	le.PutUint16(rec[30:], uint16(int16(250)))

	return le.AppendUint16(rec, wordSum.Sum(rec))
}

func testCapture(count int) []byte {
	base := time.Date(2019, time.October, 2, 14, 0, 0, 0, time.UTC)

	var data []byte
	for i := range count {
		data = append(data, currentMeterRecord(base.Add(time.Duration(i)*time.Second))...)
	}

	return data
}

func TestDecodeInfersProtocol(t *testing.T) {
	res, err := ensemble.Decode(testCapture(3))
	require.NoError(t, err)
	require.Equal(t, "paradopp", res.Protocol)
	require.Empty(t, res.Diags)
	require.Equal(t, 3, res.Series.Len())
	require.Equal(t, 0.25, res.Series.Scalar("velocity_1")[0])
}

func TestDecodeCompressedCapture(t *testing.T) {
	plain, err := ensemble.Decode(testCapture(4))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err = w.Write(testCapture(4))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	res, err := ensemble.Decode(buf.Bytes())
	require.NoError(t, err)
	require.True(t, plain.Series.Equal(res.Series), "compression must be transparent")
}

func TestDecodeUnknownProtocol(t *testing.T) {
	_, err := ensemble.Decode(testCapture(1), ensemble.WithProtocol("pd12"))
	require.ErrorIs(t, err, errs.ErrUnknownProtocol)
}

func TestDecodeUninferableCapture(t *testing.T) {
	_, err := ensemble.Decode([]byte{0x00, 0x01, 0x02, 0x03})
	require.ErrorIs(t, err, errs.ErrUnknownProtocol)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.prf")
	require.NoError(t, os.WriteFile(path, testCapture(2), 0o644))

	res, err := ensemble.DecodeFile(path)
	require.NoError(t, err)
	require.Equal(t, path, res.Path)
	require.Equal(t, 2, res.Series.Len())
}

func TestDecodeFiles(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, "capture"+string(rune('a'+i))+".prf")
		require.NoError(t, os.WriteFile(paths[i], testCapture(i+1), 0o644))
	}
	paths = append(paths, filepath.Join(dir, "missing.prf"))

	results := ensemble.DecodeFiles(context.Background(), paths)
	require.Len(t, results, 4)

	for i := range 3 {
		require.NoError(t, results[i].Err)
		require.Equal(t, i+1, results[i].Series.Len(), "results keep input order")
	}
	require.Error(t, results[3].Err, "a missing file fails its own slot only")
}

func TestDecodeFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := ensemble.DecodeFiles(ctx, []string{"a.prf", "b.prf"})
	for _, r := range results {
		require.ErrorIs(t, r.Err, context.Canceled)
	}
}
