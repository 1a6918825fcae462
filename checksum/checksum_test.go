package checksum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteSum(t *testing.T) {
	algo := ByteSum("ensemble", 0)

	t.Run("Empty", func(t *testing.T) {
		require.Equal(t, uint16(0), algo.Sum(nil))
	})

	t.Run("KnownValues", func(t *testing.T) {
		require.Equal(t, uint16(0x7F+0x7F), algo.Sum([]byte{0x7F, 0x7F}))
		require.Equal(t, uint16(1+2+3+4), algo.Sum([]byte{1, 2, 3, 4}))
	})

	t.Run("Wraps", func(t *testing.T) {
		data := make([]byte, 65536)
		for i := range data {
			data[i] = 0xFF
		}
		// 65536*255 mod 65536 == 0
		require.Equal(t, uint16(0), algo.Sum(data))
	})

	t.Run("SeedApplied", func(t *testing.T) {
		seeded := ByteSum("seeded", 0x1234)
		require.Equal(t, uint16(0x1234+3), seeded.Sum([]byte{1, 2}))
	})
}

func TestWordSum(t *testing.T) {
	algo := WordSum("frame", 0xB58C)

	t.Run("Empty", func(t *testing.T) {
		require.Equal(t, uint16(0xB58C), algo.Sum(nil))
	})

	t.Run("LittleEndianWords", func(t *testing.T) {
		// 0x0201 + 0x0403
		require.Equal(t, uint16(0xB58C+0x0201+0x0403), algo.Sum([]byte{0x01, 0x02, 0x03, 0x04}))
	})

	t.Run("OddTrailingByte", func(t *testing.T) {
		// trailing byte contributes as a low byte
		require.Equal(t, uint16(0xB58C+0x0201+0x0005), algo.Sum([]byte{0x01, 0x02, 0x05}))
	})
}

func TestSingleBitSensitivity(t *testing.T) {
	// Flipping any single bit in the covered range changes a running sum.
	algo := ByteSum("ensemble", 0)
	data := []byte{0x7F, 0x7F, 0x10, 0x20, 0x30, 0x40}
	want := algo.Sum(data)

	for i := range data {
		for bit := range 8 {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= 1 << bit
			require.NotEqual(t, want, algo.Sum(mutated), "bit %d of byte %d undetected", bit, i)
		}
	}
}

func TestAlgorithmString(t *testing.T) {
	require.Equal(t, "{Name:ensemble Seed:0x0000 Unit:bytes}", ByteSum("ensemble", 0).String())
	require.Equal(t, "{Name:frame Seed:0xB58C Unit:words}", WordSum("frame", 0xB58C).String())
}
