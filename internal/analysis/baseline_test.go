// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestBaselineTrackerBlend(t *testing.T) {
	var b BaselineTracker

	b.Blend(100, 0.5) // Unprimed: adopts the value
	if b.Value() != 100 {
		t.Fatalf("unprimed blend: got %v, want 100", b.Value())
	}

	b.Blend(200, 0.5)
	if b.Value() != 150 {
		t.Errorf("blend: got %v, want 150", b.Value())
	}

	b.Pin(10)
	if b.Value() != 10 {
		t.Errorf("pin: got %v, want 10", b.Value())
	}
}

func TestBaselineTrackerDeviationClamped(t *testing.T) {
	var b BaselineTracker
	b.Pin(50)

	tests := []struct {
		smoothed float64
		want     float64
	}{
		{80, 30},
		{50, 0},
		{20, 0}, // Below baseline reads as zero
	}

	for _, tt := range tests {
		if got := b.Deviation(tt.smoothed); got != tt.want {
			t.Errorf("Deviation(%v): got %v, want %v", tt.smoothed, got, tt.want)
		}
	}
}

func TestChannelCalibrationPinsBaseline(t *testing.T) {
	c := newChannel(1)

	for _, raw := range []int32{100, 140, 90} {
		dev := c.update(raw, ModeCalibrating, 1)
		if dev != 0 {
			t.Errorf("calibrating raw %d: deviation %v, want 0", raw, dev)
		}
		if c.Baseline != float64(raw) {
			t.Errorf("calibrating raw %d: baseline %v", raw, c.Baseline)
		}
	}

	dev := c.update(190, ModeTracking, 0.15)
	wantBase := 0.85*90 + 0.15*190
	if math.Abs(c.Baseline-wantBase) > 1e-9 {
		t.Errorf("tracking baseline: got %v, want %v", c.Baseline, wantBase)
	}
	if math.Abs(dev-(190-wantBase)) > 1e-9 {
		t.Errorf("tracking deviation: got %v, want %v", dev, 190-wantBase)
	}
	if c.Raw != 190 || c.Smoothed != 190 || c.Deviation != dev {
		t.Errorf("channel fields not updated: %+v", c)
	}
}

func TestChannelFlatInputConverges(t *testing.T) {
	c := newChannel(5)
	for i := 0; i < 200; i++ {
		c.update(500, ModeTracking, 0.15)
	}
	if c.Deviation != 0 {
		t.Errorf("flat input deviation: got %v, want 0", c.Deviation)
	}
}
