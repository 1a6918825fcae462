// Package fieldcodec provides the pure field decoders shared by the
// protocol section decoders: little-endian integers with declared
// signedness, binary-coded-decimal clock bytes with a century heuristic,
// bit-field extraction, and enumeration lookups that fail explicitly on
// unrecognised codes.
//
// No function here mutates its input slice. Bounds are the caller's
// responsibility; section decoders check their payload length once before
// extracting fields.
package fieldcodec

import (
	"fmt"

	"github.com/oceanum/ensemble/endian"
	"github.com/oceanum/ensemble/errs"
)

var engine = endian.GetLittleEndianEngine()

// Uint16 decodes an unsigned little-endian 16-bit value at off.
func Uint16(b []byte, off int) uint16 {
	return engine.Uint16(b[off : off+2])
}

// Int16 decodes a signed little-endian 16-bit value at off.
//
// Several nominally-unsigned attitude fields (heading, pitch, roll) must be
// decoded through this path to represent negative angles correctly.
func Int16(b []byte, off int) int16 {
	return int16(engine.Uint16(b[off : off+2]))
}

// Uint32 decodes an unsigned little-endian 32-bit value at off.
func Uint32(b []byte, off int) uint32 {
	return engine.Uint32(b[off : off+4])
}

// Uint8 returns the byte at off.
func Uint8(b []byte, off int) uint8 {
	return b[off]
}

// BCD decodes one binary-coded-decimal byte (two decimal digits packed into
// nibbles). A nibble greater than 9 is reported, never folded.
func BCD(b byte) (int, error) {
	hi := int(b >> 4)
	lo := int(b & 0x0F)
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("%w: byte 0x%02X", errs.ErrInvalidBCD, b)
	}

	return hi*10 + lo, nil
}

// Century resolves a two-digit year: years at or above threshold belong to
// the 1900s, the rest to the 2000s.
func Century(year2 int, threshold int) int {
	if year2 >= threshold {
		return 1900 + year2
	}

	return 2000 + year2
}

// Bit reports whether bit n of v is set.
func Bit(v uint16, n uint) bool {
	return v&(1<<n) != 0
}

// Bits extracts width bits of v starting at bit lo.
func Bits(v uint16, lo, width uint) uint16 {
	return (v >> lo) & (1<<width - 1)
}

// Lookup resolves code through a closed enumeration table. Unlisted codes
// are an explicit error, never a silent default.
func Lookup[V any](table map[uint16]V, code uint16, what string) (V, error) {
	v, ok := table[code]
	if !ok {
		return v, fmt.Errorf("%w: %s code %d", errs.ErrUnrecognisedCode, what, code)
	}

	return v, nil
}
