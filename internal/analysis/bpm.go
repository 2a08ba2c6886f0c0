// SPDX-License-Identifier: MIT
package analysis

import "gonum.org/v1/gonum/stat"

// BPMSmoother averages the most recent accepted beats in a fixed ring.
type BPMSmoother struct {
	ring   [MaxBPMWindow]float64
	size   int
	idx    int
	count  int
	latest float64
}

// NewBPMSmoother returns a smoother holding up to size beats, clamped to
// [1, MaxBPMWindow].
func NewBPMSmoother(size int) BPMSmoother {
	if size < 1 {
		size = 1
	}
	if size > MaxBPMWindow {
		size = MaxBPMWindow
	}
	return BPMSmoother{size: size}
}

// Push records one instantaneous BPM, overwriting the oldest when full.
func (b *BPMSmoother) Push(bpm float64) {
	b.ring[b.idx] = bpm
	b.idx++
	if b.idx == b.size {
		b.idx = 0
	}
	if b.count < b.size {
		b.count++
	}
	b.latest = bpm
}

// Average returns the mean of the held beats, or 0 when empty. Order does not
// matter for the mean, so the occupied prefix of the ring is used directly.
func (b *BPMSmoother) Average() float64 {
	if b.count == 0 {
		return 0
	}
	return stat.Mean(b.ring[:b.count], nil)
}

// Latest returns the most recent raw BPM, or 0 when empty.
func (b *BPMSmoother) Latest() float64 { return b.latest }

// Len returns the number of beats held.
func (b *BPMSmoother) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *BPMSmoother) Cap() int { return b.size }

// Empty reports whether no beats are held.
func (b *BPMSmoother) Empty() bool { return b.count == 0 }

// Reset drops every held beat.
func (b *BPMSmoother) Reset() {
	*b = BPMSmoother{size: b.size}
}
