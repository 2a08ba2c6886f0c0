// SPDX-License-Identifier: MIT
package analysis

// ChannelSmoother is a moving-average filter over a fixed ring of raw
// samples. Updates are O(1): the running sum drops the overwritten sample and
// adds the new one.
type ChannelSmoother struct {
	ring  [MaxSmoothingWindow]int32
	size  int
	idx   int
	count int
	sum   int64
}

// NewChannelSmoother returns a smoother averaging the last size samples.
// size is clamped to [1, MaxSmoothingWindow].
func NewChannelSmoother(size int) ChannelSmoother {
	if size < 1 {
		size = 1
	}
	if size > MaxSmoothingWindow {
		size = MaxSmoothingWindow
	}
	return ChannelSmoother{size: size}
}

// Update pushes raw into the window and returns the new average. Until the
// window fills, the average covers only the samples seen so far.
func (s *ChannelSmoother) Update(raw int32) float64 {
	if s.count == s.size {
		s.sum -= int64(s.ring[s.idx])
	} else {
		s.count++
	}
	s.ring[s.idx] = raw
	s.sum += int64(raw)
	s.idx++
	if s.idx == s.size {
		s.idx = 0
	}
	return s.Value()
}

// Value returns the current average, or 0 before the first sample.
func (s *ChannelSmoother) Value() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.count)
}

// Len returns the number of samples currently held.
func (s *ChannelSmoother) Len() int { return s.count }

// Reset empties the window.
func (s *ChannelSmoother) Reset() {
	*s = ChannelSmoother{size: s.size}
}
