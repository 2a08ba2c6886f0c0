// SPDX-License-Identifier: MIT
package analysis

import "time"

// CalibrationMode selects how channel baselines move on a tick.
type CalibrationMode uint8

const (
	ModeCalibrating CalibrationMode = iota // Baseline pinned to the smoothed value.
	ModeTracking                           // Normal EMA with BaselineAlpha.
	ModeRezeroing                          // Accelerated EMA with RezeroAlpha.
)

func (m CalibrationMode) String() string {
	switch m {
	case ModeCalibrating:
		return "calibrating"
	case ModeTracking:
		return "tracking"
	case ModeRezeroing:
		return "rezeroing"
	default:
		return "unknown"
	}
}

// Calibrator decides the baseline mode per tick: a fast lock at startup, and
// an accelerated re-zero when no beat has been accepted for a long while.
type Calibrator struct {
	window       time.Duration
	idle         time.Duration
	alpha        float64
	rezeroAlpha  float64
	lastAccepted time.Duration
	hasAccepted  bool
}

// NewCalibrator returns a calibrator for the given windows and alphas.
func NewCalibrator(window, idle time.Duration, alpha, rezeroAlpha float64) Calibrator {
	return Calibrator{window: window, idle: idle, alpha: alpha, rezeroAlpha: rezeroAlpha}
}

// Mode returns the mode at now. bpmEmpty reports whether the BPM ring holds
// no beats; re-zeroing only starts when it is empty.
func (c *Calibrator) Mode(now time.Duration, bpmEmpty bool) CalibrationMode {
	if !c.calibrated(now) {
		return ModeCalibrating
	}
	ref := c.window
	if c.hasAccepted && c.lastAccepted > ref {
		ref = c.lastAccepted
	}
	if bpmEmpty && now-ref >= c.idle {
		return ModeRezeroing
	}
	return ModeTracking
}

// Alpha returns the baseline EMA weight for mode. Calibrating pins rather
// than blends, so its weight is 1.
func (c *Calibrator) Alpha(mode CalibrationMode) float64 {
	switch mode {
	case ModeCalibrating:
		return 1
	case ModeRezeroing:
		return c.rezeroAlpha
	default:
		return c.alpha
	}
}

// PeakAccepted records an accepted beat at now, ending any re-zero.
func (c *Calibrator) PeakAccepted(now time.Duration) {
	c.lastAccepted = now
	c.hasAccepted = true
}

// calibrated reports whether the startup window has passed.
func (c *Calibrator) calibrated(now time.Duration) bool { return now >= c.window }
