package paradopp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/errs"
	"github.com/oceanum/ensemble/protocol"
	"github.com/oceanum/ensemble/series"
	"github.com/oceanum/ensemble/source"
)

var le = binary.LittleEndian

func toBCD(v int) byte {
	return byte(v/10<<4 | v%10)
}

// buildRecord frames a record of the given total size: sync, id, word
// count, payload, trailing checksum. fill writes the payload in place.
func buildRecord(id byte, size int, fill func(rec []byte)) []byte {
	rec := make([]byte, size-2)
	rec[0] = syncByte
	rec[1] = id
	le.PutUint16(rec[2:], uint16(size/2))
	if fill != nil {
		fill(rec)
	}

	return le.AppendUint16(rec, algo.Sum(rec))
}

func putClock(rec []byte, clock time.Time) {
	rec[4] = toBCD(clock.Minute())
	rec[5] = toBCD(clock.Second())
	rec[6] = toBCD(clock.Day())
	rec[7] = toBCD(clock.Hour())
	rec[8] = toBCD(clock.Year() % 100)
	rec[9] = toBCD(int(clock.Month()))
}

func putSensors(rec []byte) {
	le.PutUint16(rec[14:], 132)   // 13.2 V
	le.PutUint16(rec[16:], 15000) // 1500.0 m/s
	le.PutUint16(rec[18:], 2105)  // 210.5 degrees
	pitch := int16(-15)
	le.PutUint16(rec[20:], uint16(pitch))
	le.PutUint16(rec[22:], 5)
	rec[24] = 1 // pressure MSB
	le.PutUint16(rec[26:], 234)
	le.PutUint16(rec[28:], 2312) // 23.12 degrees C
}

func hardwareConfig() []byte {
	return buildRecord(idHardwareConfig, sizeHardwareConfig, func(rec []byte) {
		le.PutUint16(rec[20:], 2000)
	})
}

func headConfig(beams int) []byte {
	return buildRecord(idHeadConfig, sizeHeadConfig, func(rec []byte) {
		le.PutUint16(rec[220:], uint16(beams))
	})
}

func userConfig(bins, beams int) []byte {
	return buildRecord(idUserConfig, sizeUserConfig, func(rec []byte) {
		le.PutUint16(rec[16:], 60)
		le.PutUint16(rec[18:], uint16(beams))
		le.PutUint16(rec[34:], uint16(bins))
		le.PutUint16(rec[36:], 200)
	})
}

func velocityRecord(clock time.Time) []byte {
	return buildRecord(idVelocity, sizeVelocity, func(rec []byte) {
		putClock(rec, clock)
		putSensors(rec)
		for i := range 3 {
			le.PutUint16(rec[30+2*i:], uint16(int16(10*(i+1))))
			rec[36+i] = byte(100 + i)
		}
	})
}

func profilerRecord(clock time.Time, bins, beams int) []byte {
	n := bins * beams
	size := 30 + 2*n + n + n%2 + 2

	return buildRecord(idProfilerVelocity, size, func(rec []byte) {
		putClock(rec, clock)
		putSensors(rec)
		for i := range n {
			le.PutUint16(rec[30+2*i:], uint16(int16(10*(i+1))))
			rec[30+2*n+i] = byte(100 + i)
		}
	})
}

var baseClock = time.Date(2016, time.May, 12, 10, 30, 15, 0, time.UTC)

// buildProfilerCapture emits the configuration triple followed by count
// profiler records at a one-minute cadence.
func buildProfilerCapture(count, bins, beams int) []byte {
	data := hardwareConfig()
	data = append(data, headConfig(beams)...)
	data = append(data, userConfig(bins, beams)...)
	for i := range count {
		data = append(data, profilerRecord(baseClock.Add(time.Duration(i)*time.Minute), bins, beams)...)
	}

	return data
}

func decode(t *testing.T, data []byte) (*series.Series, diag.List, error) {
	t.Helper()

	buf, err := source.FromBytes(data)
	require.NoError(t, err)

	return NewDecoder(protocol.Config{}).Decode(buf)
}

func TestDecodeProfilerCapture(t *testing.T) {
	// 5 cells x 3 beams is an odd value count, so every profiler record
	// carries the word-alignment pad byte.
	s, dl, err := decode(t, buildProfilerCapture(3, 5, 3))
	require.NoError(t, err)
	require.Empty(t, dl)
	require.Equal(t, 3, s.Len())

	ts := s.Timestamps()
	require.Equal(t, baseClock.UnixMicro(), ts[0])
	require.Equal(t, baseClock.Add(2*time.Minute).UnixMicro(), ts[2])

	t.Run("configuration scalars", func(t *testing.T) {
		require.Equal(t, 2000.0, s.Scalar("frequency")[0])
		require.Equal(t, 60.0, s.Scalar("avg_interval")[0])
		require.Equal(t, 5.0, s.Scalar("cells")[2])
		require.Equal(t, 3.0, s.Scalar("beams")[0])
		require.Equal(t, 2.0, s.Scalar("cell_length")[0])
	})

	t.Run("sensor scalars", func(t *testing.T) {
		require.Equal(t, 13.2, s.Scalar("battery")[0])
		require.Equal(t, 1500.0, s.Scalar("sound_speed")[1])
		require.Equal(t, 210.5, s.Scalar("heading")[0])
		require.Equal(t, -1.5, s.Scalar("pitch")[0])
		require.Equal(t, 0.5, s.Scalar("roll")[0])
		require.Equal(t, (65536.0+234)/1000, s.Scalar("pressure")[0])
		require.Equal(t, 23.12, s.Scalar("temperature")[2])
	})

	t.Run("per-cell arrays", func(t *testing.T) {
		vel := s.Matrix("velocity")
		require.Equal(t, 3, vel.Rows())
		require.Equal(t, 15, vel.Cells)
		require.Equal(t, 0.01, vel.Row(0)[0])
		require.Equal(t, 0.15, vel.Row(2)[14])

		amp := s.Matrix("amplitude")
		require.Equal(t, 100.0, amp.Row(0)[0])
		require.Equal(t, 114.0, amp.Row(1)[14])
	})
}

func TestDecodeCurrentMeterRecords(t *testing.T) {
	data := velocityRecord(baseClock)
	data = append(data, velocityRecord(baseClock.Add(time.Second))...)

	s, dl, err := decode(t, data)
	require.NoError(t, err)
	require.Empty(t, dl)
	require.Equal(t, 2, s.Len())

	require.Equal(t, 0.01, s.Scalar("velocity_1")[0])
	require.Equal(t, 0.03, s.Scalar("velocity_3")[1])
	require.Equal(t, 102.0, s.Scalar("amplitude_3")[0])
	require.Equal(t, 13.2, s.Scalar("battery")[0])
}

func TestStructuralRetryAfterCorruption(t *testing.T) {
	head := buildProfilerCapture(0, 5, 3)
	rec := profilerRecord(baseClock, 5, 3)

	data := append([]byte{}, head...)
	data = append(data, rec...)
	corruptAt := len(data) - 5 // amplitude area of the second data record
	data = append(data, profilerRecord(baseClock.Add(time.Minute), 5, 3)...)
	data = append(data, profilerRecord(baseClock.Add(2*time.Minute), 5, 3)...)

	data[corruptAt+len(rec)] ^= 0xFF

	s, dl, err := decode(t, data)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len(), "records after the corrupted one still decode")
	require.GreaterOrEqual(t, dl.Count(diag.KindIntegrity), 1)

	ts := s.Timestamps()
	require.Equal(t, baseClock.UnixMicro(), ts[0])
	require.Equal(t, baseClock.Add(2*time.Minute).UnixMicro(), ts[1])
}

func TestUnknownRecordReportedOnce(t *testing.T) {
	mystery := buildRecord(0x42, 12, nil)

	data := velocityRecord(baseClock)
	data = append(data, mystery...)
	data = append(data, mystery...)
	data = append(data, velocityRecord(baseClock.Add(time.Second))...)

	s, dl, err := decode(t, data)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	require.Equal(t, 1, dl.Count(diag.KindUnsupportedSection))
}

func TestProfilerBeforeUserConfig(t *testing.T) {
	s, dl, err := decode(t, profilerRecord(baseClock, 5, 3))
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
	require.Equal(t, 1, dl.Count(diag.KindIntegrity))
}

func TestMajorityCorruptionReported(t *testing.T) {
	rec := velocityRecord(baseClock)
	data := append([]byte{}, rec...)
	data = append(data, velocityRecord(baseClock.Add(time.Second))...)
	data = append(data, velocityRecord(baseClock.Add(2*time.Second))...)

	// Break the last two records; with no timestamp repair in this family
	// a failed checksum is unrecoverable.
	data[len(rec)+10] ^= 0xFF
	data[2*len(rec)+10] ^= 0xFF

	s, _, err := decode(t, data)
	require.ErrorIs(t, err, errs.ErrCorruptFile)
	require.Equal(t, 1, s.Len())
}

func TestNoValidRecords(t *testing.T) {
	s, _, err := decode(t, []byte{syncByte, idVelocity, 0xFF, 0xFF, 0x00, 0x00})
	require.ErrorIs(t, err, errs.ErrNoValidFrames)
	require.Equal(t, 0, s.Len())
}

func TestSniffAndRegistry(t *testing.T) {
	data := velocityRecord(baseClock)
	require.True(t, Sniff(data))
	require.False(t, Sniff([]byte{syncByte, 0x99}))
	require.False(t, Sniff([]byte{0x7F, 0x7F}))

	name, err := protocol.Infer(data)
	require.NoError(t, err)
	require.Equal(t, FamilyName, name)
}
