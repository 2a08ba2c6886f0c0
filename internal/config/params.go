// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"pulse/internal/analysis"
)

// DetectorConfig mirrors analysis.Params in YAML form.
type DetectorConfig struct {
	SmoothingWindow       int           `yaml:"smoothing_window"`
	BaselineAlpha         float64       `yaml:"baseline_alpha"`
	RezeroAlpha           float64       `yaml:"rezero_alpha"`
	EnvelopeAlpha         float64       `yaml:"envelope_alpha"`
	MADAlpha              float64       `yaml:"mad_alpha"`
	MADFloor              float64       `yaml:"mad_floor"`
	ArmZ                  float64       `yaml:"arm_z"`
	ReleaseZ              float64       `yaml:"release_z"`
	FreezeStatsWhileArmed bool          `yaml:"freeze_stats_while_armed"`
	RefractoryMin         time.Duration `yaml:"refractory_min"`
	RefractoryMax         time.Duration `yaml:"refractory_max"`
	BPMWindow             int           `yaml:"bpm_window"`
	EventUpper            float64       `yaml:"event_upper"`
	EventLower            float64       `yaml:"event_lower"`
	EventMinDuration      time.Duration `yaml:"event_min_duration"`
	TachyHigh             float64       `yaml:"tachy_high"`
	BradyLow              float64       `yaml:"brady_low"`
	Calibration           time.Duration `yaml:"calibration"`
	IdleRezero            time.Duration `yaml:"idle_rezero"`
}

// DefaultDetectorConfig returns the detector section matching
// analysis.DefaultParams.
func DefaultDetectorConfig() DetectorConfig {
	p := analysis.DefaultParams()
	return DetectorConfig{
		SmoothingWindow:       p.SmoothingWindow,
		BaselineAlpha:         p.BaselineAlpha,
		RezeroAlpha:           p.RezeroAlpha,
		EnvelopeAlpha:         p.EnvelopeAlpha,
		MADAlpha:              p.MADAlpha,
		MADFloor:              p.MADFloor,
		ArmZ:                  p.ArmZ,
		ReleaseZ:              p.ReleaseZ,
		FreezeStatsWhileArmed: p.FreezeStatsWhileArmed,
		RefractoryMin:         p.RefractoryMin,
		RefractoryMax:         p.RefractoryMax,
		BPMWindow:             p.BPMWindow,
		EventUpper:            p.EventUpper,
		EventLower:            p.EventLower,
		EventMinDuration:      p.EventMinDuration,
		TachyHigh:             p.TachyHigh,
		BradyLow:              p.BradyLow,
		Calibration:           p.Calibration,
		IdleRezero:            p.IdleRezero,
	}
}

// Params converts the section into pipeline parameters for the given number
// of sensor channels.
func (d DetectorConfig) Params(channels int) analysis.Params {
	return analysis.Params{
		Channels:              channels,
		SmoothingWindow:       d.SmoothingWindow,
		BaselineAlpha:         d.BaselineAlpha,
		RezeroAlpha:           d.RezeroAlpha,
		EnvelopeAlpha:         d.EnvelopeAlpha,
		MADAlpha:              d.MADAlpha,
		MADFloor:              d.MADFloor,
		ArmZ:                  d.ArmZ,
		ReleaseZ:              d.ReleaseZ,
		FreezeStatsWhileArmed: d.FreezeStatsWhileArmed,
		RefractoryMin:         d.RefractoryMin,
		RefractoryMax:         d.RefractoryMax,
		BPMWindow:             d.BPMWindow,
		EventUpper:            d.EventUpper,
		EventLower:            d.EventLower,
		EventMinDuration:      d.EventMinDuration,
		TachyHigh:             d.TachyHigh,
		BradyLow:              d.BradyLow,
		Calibration:           d.Calibration,
		IdleRezero:            d.IdleRezero,
	}
}

// Params returns the pipeline parameters for the configured sensor.
func (c *Config) Params() analysis.Params {
	return c.Detector.Params(c.Sensor.Channels)
}
