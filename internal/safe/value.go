// Package safe provides overflow-checked conversions between the integer
// widths used by offsets, file positions and native addresses.
package safe

import (
	"math"
)

// Uint64ToInt safely converts an uint64 value to int, clamping to math.MaxInt if overflow
// would occur.
func Uint64ToInt(val uint64) (int, bool) {
	if val > math.MaxInt {
		return math.MaxInt, true
	}
	return int(val), false
}

// IntToUintptr converts a non-negative int to uintptr.
// Returns false for negative values, which never describe a valid offset.
func IntToUintptr(val int) (uintptr, bool) {
	if val < 0 {
		return 0, false
	}
	return uintptr(val), true
}
