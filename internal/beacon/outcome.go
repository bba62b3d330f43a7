package beacon

import (
	"encoding/binary"
	"math"
)

// MapToPocket reduces 32 bytes of entropy to a pocket index in [0, pockets).
//
// The entropy is read as four big-endian 64-bit windows. A window is
// accepted when its value falls below the largest multiple of pockets
// representable in 64 bits, which makes the modulo exactly uniform. A
// window is rejected with probability under 2^-58 for any pocket count up
// to 38, so the plain-modulo fallback after all four windows carries a
// selection bias below 2^-232.
//
// pockets must be positive; layouts validate their count before use.
func MapToPocket(e Entropy, pockets int) int {
	n := uint64(pockets)
	threshold := math.MaxUint64 - math.MaxUint64%n

	for i := 0; i+8 <= len(e); i += 8 {
		v := binary.BigEndian.Uint64(e[i : i+8])
		if v < threshold {
			return int(v % n)
		}
	}

	v := binary.BigEndian.Uint64(e[0:8])
	return int(v % n)
}
