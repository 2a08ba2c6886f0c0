// SPDX-License-Identifier: MIT
package analysis

import "time"

// PeakOutcome classifies what happened on a detector step.
type PeakOutcome uint8

const (
	PeakNone     PeakOutcome = iota // No release this tick.
	PeakAccepted                    // Release with a plausible interval.
	PeakSeed                        // First release; nothing to measure against.
	PeakTooFast                     // Interval below the refractory minimum.
	PeakTooSlow                     // Interval above the refractory maximum.
)

func (o PeakOutcome) String() string {
	switch o {
	case PeakNone:
		return "none"
	case PeakAccepted:
		return "accepted"
	case PeakSeed:
		return "seed"
	case PeakTooFast:
		return "too_fast"
	case PeakTooSlow:
		return "too_slow"
	default:
		return "unknown"
	}
}

// Peak is the result of one detector step. Interval and BPM are set for
// every release except PeakSeed; BPM is only meaningful when accepted.
type Peak struct {
	Outcome  PeakOutcome
	At       time.Duration
	Interval time.Duration
	BPM      float64
	PeakZ    float64
}

// Accepted reports whether the step produced a beat.
func (p Peak) Accepted() bool { return p.Outcome == PeakAccepted }

// DetectorPhase names the hysteresis state of a PeakDetector.
type DetectorPhase uint8

const (
	PhaseReleased DetectorPhase = iota
	PhaseArmed
)

func (p DetectorPhase) String() string {
	if p == PhaseArmed {
		return "armed"
	}
	return "released"
}

type detectorState interface {
	phase() DetectorPhase
}

type releasedState struct{}

type armedState struct {
	since time.Duration
	peakZ float64
}

func (*releasedState) phase() DetectorPhase { return PhaseReleased }
func (*armedState) phase() DetectorPhase    { return PhaseArmed }

// PeakDetector is a two-threshold hysteresis detector on the z-score.
// Not safe for concurrent use.
type PeakDetector struct {
	armZ, releaseZ float64
	minInterval    time.Duration
	maxInterval    time.Duration

	state    detectorState
	released releasedState
	armed    armedState

	lastRelease time.Duration
	hasRelease  bool
}

// NewPeakDetector returns a detector in the released state.
func NewPeakDetector(armZ, releaseZ float64, minInterval, maxInterval time.Duration) *PeakDetector {
	d := &PeakDetector{
		armZ:        armZ,
		releaseZ:    releaseZ,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
	d.state = &d.released
	return d
}

// Phase returns the current hysteresis state.
func (d *PeakDetector) Phase() DetectorPhase { return d.state.phase() }

// Armed reports whether the detector is waiting for a release.
func (d *PeakDetector) Armed() bool { return d.state.phase() == PhaseArmed }

// previousRelease returns the time of the most recent release, accepted or
// not.
func (d *PeakDetector) previousRelease() (time.Duration, bool) {
	return d.lastRelease, d.hasRelease
}

// Step advances the detector with the z-score observed at now.
func (d *PeakDetector) Step(z float64, now time.Duration) Peak {
	switch s := d.state.(type) {
	case *releasedState:
		if z > d.armZ {
			d.armed = armedState{since: now, peakZ: z}
			d.state = &d.armed
		}
	case *armedState:
		if z > s.peakZ {
			s.peakZ = z
		}
		if z < d.releaseZ {
			peakZ := s.peakZ
			d.state = &d.released
			p := d.release(now)
			p.PeakZ = peakZ
			return p
		}
	}
	return Peak{}
}

// release records the release time unconditionally, so a rejected bounce
// still resets the interval reference for the next beat.
func (d *PeakDetector) release(now time.Duration) Peak {
	p := Peak{At: now}
	prev, had := d.lastRelease, d.hasRelease
	d.lastRelease, d.hasRelease = now, true

	if !had {
		p.Outcome = PeakSeed
		return p
	}

	p.Interval = now - prev
	switch {
	case p.Interval < d.minInterval:
		p.Outcome = PeakTooFast
	case p.Interval > d.maxInterval:
		p.Outcome = PeakTooSlow
	default:
		p.Outcome = PeakAccepted
	}
	p.BPM = IntervalToBPM(p.Interval)
	return p
}

// Reset returns the detector to released and forgets the last release.
func (d *PeakDetector) Reset() {
	d.state = &d.released
	d.armed = armedState{}
	d.lastRelease, d.hasRelease = 0, false
}

// IntervalToBPM converts an inter-beat interval into beats per minute.
func IntervalToBPM(interval time.Duration) float64 {
	ms := float64(interval) / float64(time.Millisecond)
	if ms <= 0 {
		return 0
	}
	return 60000 / ms
}
