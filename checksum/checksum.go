// Package checksum implements the modular running-sum integrity codes used
// by the supported telemetry protocol families.
//
// Both families store a trailing 16-bit value computed as a fixed-seed sum
// modulo 65536; they differ in the summation unit (bytes vs little-endian
// 16-bit words) and the seed.
package checksum

import "fmt"

// Algorithm describes one protocol's integrity code.
type Algorithm struct {
	Name string
	// Seed is the initial accumulator value added before summing.
	Seed uint16
	// Words selects summation over little-endian 16-bit words instead of
	// individual bytes. A trailing odd byte contributes as a low byte.
	Words bool
}

func (a Algorithm) String() string {
	unit := "bytes"
	if a.Words {
		unit = "words"
	}

	return fmt.Sprintf("{Name:%s Seed:0x%04X Unit:%s}", a.Name, a.Seed, unit)
}

// Sum computes the checksum over data: (seed + Σ units) mod 65536.
func (a Algorithm) Sum(data []byte) uint16 {
	sum := a.Seed
	if !a.Words {
		for _, b := range data {
			sum += uint16(b)
		}

		return sum
	}

	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint16(data[i]) | uint16(data[i+1])<<8
	}
	if len(data)&1 != 0 {
		sum += uint16(data[len(data)-1])
	}

	return sum
}

// ByteSum returns the byte-summing algorithm with the given seed, used by
// marker-pair ensemble protocols.
func ByteSum(name string, seed uint16) Algorithm {
	return Algorithm{Name: name, Seed: seed}
}

// WordSum returns the word-summing algorithm with the given seed, used by
// sync-byte frame protocols.
func WordSum(name string, seed uint16) Algorithm {
	return Algorithm{Name: name, Seed: seed, Words: true}
}
