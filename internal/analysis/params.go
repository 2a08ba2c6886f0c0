// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"time"
)

// Hard capacity limits for the fixed ring buffers. Configured window sizes
// must fit inside these so that no buffer is ever resized after startup.
const (
	MaxSmoothingWindow = 16
	MaxBPMWindow       = 32
	MaxChannels        = 8
)

// Params holds every tunable of the pulse pipeline. All values are fixed for
// the lifetime of a Controller.
type Params struct {
	Channels        int     // Number of force-sensor inputs.
	SmoothingWindow int     // Moving-average depth per channel (samples).
	BaselineAlpha   float64 // EMA weight of the resting-level tracker.
	RezeroAlpha     float64 // Baseline EMA weight while chasing drift.

	EnvelopeAlpha float64 // EMA weight of the envelope mean.
	MADAlpha      float64 // EMA weight of the mean absolute deviation.
	MADFloor      float64 // Lower bound for the z-score divisor.

	ArmZ     float64 // z-score that arms the peak detector.
	ReleaseZ float64 // z-score below which an armed detector releases.

	// FreezeStatsWhileArmed stops the envelope statistics from learning while
	// the detector is armed. Off by default: statistics update every tick,
	// which mildly suppresses very closely spaced beats.
	FreezeStatsWhileArmed bool

	RefractoryMin time.Duration // Shortest accepted inter-peak interval.
	RefractoryMax time.Duration // Longest accepted inter-peak interval.

	BPMWindow int // Number of recent beats averaged into the smoothed BPM.

	EventUpper       float64       // Smoothed BPM that opens a candidate event.
	EventLower       float64       // Smoothed BPM that closes an active event.
	EventMinDuration time.Duration // Time above EventUpper before confirmation.

	TachyHigh float64 // Smoothed BPM above which the status is "high".
	BradyLow  float64 // Smoothed BPM below which the status is "low".

	Calibration time.Duration // Startup fast-lock window.
	IdleRezero  time.Duration // Beat-free time before drift chasing starts.
}

// DefaultParams returns the parameter set tuned for a two-pad force sensor
// sampled at 50 Hz.
func DefaultParams() Params {
	return Params{
		Channels:         2,
		SmoothingWindow:  5,
		BaselineAlpha:    0.15,
		RezeroAlpha:      0.35,
		EnvelopeAlpha:    0.2,
		MADAlpha:         0.2,
		MADFloor:         0.5,
		ArmZ:             3.0,
		ReleaseZ:         1.0,
		RefractoryMin:    250 * time.Millisecond,
		RefractoryMax:    6000 * time.Millisecond,
		BPMWindow:        5,
		EventUpper:       100,
		EventLower:       90,
		EventMinDuration: 5 * time.Second,
		TachyHigh:        100,
		BradyLow:         50,
		Calibration:      2 * time.Second,
		IdleRezero:       8 * time.Second,
	}
}

var errAlphaRange = errors.New("must be in (0, 1]")

// Validate reports the first inconsistency found in p.
func (p Params) Validate() error {
	if p.Channels < 1 || p.Channels > MaxChannels {
		return fmt.Errorf("channels must be in [1, %d], got %d", MaxChannels, p.Channels)
	}
	if p.SmoothingWindow < 1 || p.SmoothingWindow > MaxSmoothingWindow {
		return fmt.Errorf("smoothing window must be in [1, %d], got %d", MaxSmoothingWindow, p.SmoothingWindow)
	}
	if p.BPMWindow < 1 || p.BPMWindow > MaxBPMWindow {
		return fmt.Errorf("bpm window must be in [1, %d], got %d", MaxBPMWindow, p.BPMWindow)
	}

	alphas := []struct {
		name  string
		value float64
	}{
		{"baseline alpha", p.BaselineAlpha},
		{"rezero alpha", p.RezeroAlpha},
		{"envelope alpha", p.EnvelopeAlpha},
		{"mad alpha", p.MADAlpha},
	}
	for _, a := range alphas {
		if a.value <= 0 || a.value > 1 {
			return fmt.Errorf("%s %v: %w", a.name, a.value, errAlphaRange)
		}
	}

	if p.MADFloor <= 0 {
		return fmt.Errorf("mad floor must be positive, got %v", p.MADFloor)
	}
	if p.ReleaseZ >= p.ArmZ {
		return fmt.Errorf("release z (%v) must be below arm z (%v)", p.ReleaseZ, p.ArmZ)
	}
	if p.RefractoryMin <= 0 || p.RefractoryMin >= p.RefractoryMax {
		return fmt.Errorf("refractory bounds invalid: min %s, max %s", p.RefractoryMin, p.RefractoryMax)
	}
	if p.EventLower >= p.EventUpper {
		return fmt.Errorf("event lower (%v) must be below event upper (%v)", p.EventLower, p.EventUpper)
	}
	if p.EventMinDuration < 0 || p.Calibration < 0 || p.IdleRezero < 0 {
		return errors.New("durations must not be negative")
	}
	if p.BradyLow >= p.TachyHigh {
		return fmt.Errorf("brady low (%v) must be below tachy high (%v)", p.BradyLow, p.TachyHigh)
	}
	return nil
}
