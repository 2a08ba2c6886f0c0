// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"time"
)

// Tick is everything one Update produced. It is returned by value and holds
// no references into the controller.
type Tick struct {
	At       time.Duration
	Mode     CalibrationMode
	Envelope float64
	Z        float64

	Peak        Peak
	RawBPM      float64
	SmoothedBPM float64
	Status      Status

	Alert      AlertPhase
	Transition Transition
	Summary    Summary
	Completed  bool
}

// Beat reports whether a new BPM sample was accepted on this tick.
func (t Tick) Beat() bool { return t.Peak.Accepted() }

// Controller owns the complete pulse pipeline. All buffers are sized at
// construction; Update never allocates. Not safe for concurrent use.
type Controller struct {
	params Params

	channels [MaxChannels]Channel
	devs     [MaxChannels]float64
	n        int

	calibrator Calibrator
	normalizer Normalizer
	detector   *PeakDetector
	bpm        BPMSmoother
	events     *EventMachine

	last Tick
}

// NewController validates p and builds a controller ready for its first tick.
func NewController(p Params) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector parameters: %w", err)
	}

	c := &Controller{
		params:     p,
		n:          p.Channels,
		calibrator: NewCalibrator(p.Calibration, p.IdleRezero, p.BaselineAlpha, p.RezeroAlpha),
		normalizer: NewNormalizer(p.EnvelopeAlpha, p.MADAlpha, p.MADFloor),
		detector:   NewPeakDetector(p.ArmZ, p.ReleaseZ, p.RefractoryMin, p.RefractoryMax),
		bpm:        NewBPMSmoother(p.BPMWindow),
		events:     NewEventMachine(p.EventUpper, p.EventLower, p.EventMinDuration),
	}
	for i := 0; i < c.n; i++ {
		c.channels[i] = newChannel(p.SmoothingWindow)
	}
	return c, nil
}

// Update runs one tick at now (time since start) over one raw sample per
// channel. Extra samples are ignored; missing channels keep their previous
// deviation.
func (c *Controller) Update(now time.Duration, raw []int32) Tick {
	p := &c.params

	mode := c.calibrator.Mode(now, c.bpm.Empty())
	alpha := c.calibrator.Alpha(mode)

	n := min(len(raw), c.n)
	for i := 0; i < n; i++ {
		c.devs[i] = c.channels[i].update(raw[i], mode, alpha)
	}
	env := FuseEnvelope(c.devs[:c.n])

	learn := !(p.FreezeStatsWhileArmed && c.detector.Armed())
	z := c.normalizer.Update(env, learn)

	peak := c.detector.Step(z, now)
	if peak.Accepted() {
		c.bpm.Push(peak.BPM)
		c.calibrator.PeakAccepted(now)
	}

	smoothed := c.bpm.Average()
	tr, summary, done := c.events.Step(smoothed, now)
	if done {
		c.bpm.Reset()
	}

	c.last = Tick{
		At:          now,
		Mode:        mode,
		Envelope:    env,
		Z:           z,
		Peak:        peak,
		RawBPM:      c.bpm.Latest(),
		SmoothedBPM: smoothed,
		Status:      Classify(smoothed, p.TachyHigh, p.BradyLow),
		Alert:       tr.To,
		Transition:  tr,
		Summary:     summary,
		Completed:   done,
	}
	return c.last
}

// Last returns the most recent tick, or the zero Tick before the first one.
func (c *Controller) Last() Tick { return c.last }

// Channels exposes the per-channel conditioning state for inspection.
func (c *Controller) Channels() []Channel { return c.channels[:c.n] }

// Params returns the parameters the controller was built with.
func (c *Controller) Params() Params { return c.params }

// Statistics returns the running envelope mean and MAD.
func (c *Controller) Statistics() (mean, mad float64) {
	return c.normalizer.Mean(), c.normalizer.MAD()
}

// BPMCount returns how many beats the smoothing ring currently holds.
func (c *Controller) BPMCount() int { return c.bpm.Len() }

// AlertSince returns when the current ARMED or ACTIVE episode began.
func (c *Controller) AlertSince() (time.Duration, bool) { return c.events.Since() }
