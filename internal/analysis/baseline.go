// SPDX-License-Identifier: MIT
package analysis

// BaselineTracker follows the resting (unloaded) level of one channel.
type BaselineTracker struct {
	value  float64
	primed bool
}

// Pin locks the baseline onto smoothed. Used during calibration so the
// detector starts from a sane zero point.
func (b *BaselineTracker) Pin(smoothed float64) {
	b.value = smoothed
	b.primed = true
}

// Blend moves the baseline towards smoothed by alpha. An unprimed tracker
// adopts the first value directly.
func (b *BaselineTracker) Blend(smoothed, alpha float64) {
	if !b.primed {
		b.Pin(smoothed)
		return
	}
	b.value = (1-alpha)*b.value + alpha*smoothed
}

// Value returns the current baseline estimate.
func (b *BaselineTracker) Value() float64 { return b.value }

// Deviation returns the upward excursion of smoothed above the baseline.
// Loads below the baseline are not events of interest and read as zero.
func (b *BaselineTracker) Deviation(smoothed float64) float64 {
	d := smoothed - b.value
	if d < 0 {
		return 0
	}
	return d
}

// Channel is the per-input conditioning stage: smoother plus baseline.
type Channel struct {
	Raw       int32
	Smoothed  float64
	Baseline  float64
	Deviation float64

	smoother ChannelSmoother
	tracker  BaselineTracker
}

func newChannel(window int) Channel {
	return Channel{smoother: NewChannelSmoother(window)}
}

// update runs one tick of conditioning. A Calibrating mode pins the
// baseline; otherwise it blends with alpha.
func (c *Channel) update(raw int32, mode CalibrationMode, alpha float64) float64 {
	c.Raw = raw
	c.Smoothed = c.smoother.Update(raw)
	if mode == ModeCalibrating {
		c.tracker.Pin(c.Smoothed)
	} else {
		c.tracker.Blend(c.Smoothed, alpha)
	}
	c.Baseline = c.tracker.Value()
	c.Deviation = c.tracker.Deviation(c.Smoothed)
	return c.Deviation
}
