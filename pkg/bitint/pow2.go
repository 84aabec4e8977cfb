// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size transforms and
buffers. Every function is allocation free and constant time, so it may be
called from the audio path.

Usage:

	// Pick a transform length that holds a whole analysis block
	fftSize := bitint.NextPowerOfTwo(1000) // 1024

	// Warn about lengths the FFT handles on its slow path
	if !bitint.IsPowerOfTwo(fftSize) { ... }

NextPowerOfTwo works on size-1 so that exact powers of two map to
themselves: bits.Len64(7) is 3 and 1<<3 is 8, whereas bits.Len64(8) would
double the input to 16.
*/
package bitint

import "math/bits"

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// NextPowerOfTwo returns the smallest power of two >= size. Zero and
// negative sizes yield 1. The result overflows silently when it does not
// fit in T.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo[T Integer](size T) T {
	if size <= 1 {
		return 1
	}
	return T(1) << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so clearing its lowest set bit leaves zero.
func IsPowerOfTwo[T Integer](n T) bool {
	return n > 0 && n&(n-1) == 0
}
