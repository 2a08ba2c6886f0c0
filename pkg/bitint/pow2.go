/*
Package bitint provides the power-of-two helpers used to size capture
buffers. PortAudio hosts deliver callbacks most reliably when the frames per
buffer is a power of two, so requested sizes are rounded up before a stream
is opened.

All functions are constant time and allocation free.

Usage:

	// 160 frames is one 20ms tick at 8 kHz
	frames := bitint.NextPowerOfTwo(160) // Returns 256

NextPowerOfTwo works on size-1 so that exact powers of two are preserved:
bits.Len(7) is 3 and 1<<3 is 8, while bits.Len(8) would give 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Non-positive sizes
// give 1.
//
//	Input  Output
//	4      4
//	5      8
//	160    256
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
