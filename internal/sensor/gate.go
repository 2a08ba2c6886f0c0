// SPDX-License-Identifier: MIT
package sensor

import "math"

// The gate silences capture buffers whose peak amplitude does not exceed the
// threshold, so cable hiss on an unloaded pad reads as zero rather than as a
// wandering baseline. The threshold is stored as an int32 so the callback can
// compare without conversion.

func (l *LineIn) EnableGate() {
	l.gateEnabled.Store(true)
}

func (l *LineIn) DisableGate() {
	l.gateEnabled.Store(false)
}

// SetGateThreshold sets the threshold as a fraction of full scale, clamped
// to [0, 1].
func (l *LineIn) SetGateThreshold(threshold float64) {
	threshold = math.Max(0, math.Min(1, threshold))
	l.gateThreshold.Store(int32(threshold * float64(math.MaxInt32)))
}

func (l *LineIn) GateThreshold() float64 {
	return float64(l.gateThreshold.Load()) / float64(math.MaxInt32)
}

// gated reports whether the buffer should be dropped to silence.
func (l *LineIn) gated(in []int32) bool {
	return l.gateEnabled.Load() && peakAmplitude(in) <= l.gateThreshold.Load()
}

// peakAmplitude returns the largest absolute sample without branching.
func peakAmplitude(in []int32) int32 {
	var peak int32
	for _, sample := range in {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask

		diff := amplitude - peak
		peak += (diff & (diff >> 31)) ^ diff
	}
	return peak
}
