// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParamsValid(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"No channels", func(p *Params) { p.Channels = 0 }},
		{"Too many channels", func(p *Params) { p.Channels = MaxChannels + 1 }},
		{"Smoothing window", func(p *Params) { p.SmoothingWindow = MaxSmoothingWindow + 1 }},
		{"BPM window", func(p *Params) { p.BPMWindow = 0 }},
		{"Baseline alpha", func(p *Params) { p.BaselineAlpha = 0 }},
		{"Envelope alpha", func(p *Params) { p.EnvelopeAlpha = 1.5 }},
		{"MAD floor", func(p *Params) { p.MADFloor = 0 }},
		{"Release above arm", func(p *Params) { p.ReleaseZ = p.ArmZ }},
		{"Refractory inverted", func(p *Params) { p.RefractoryMin = p.RefractoryMax }},
		{"Event bounds", func(p *Params) { p.EventLower = p.EventUpper }},
		{"Negative calibration", func(p *Params) { p.Calibration = -time.Second }},
		{"Status bounds", func(p *Params) { p.BradyLow = p.TachyHigh }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}
