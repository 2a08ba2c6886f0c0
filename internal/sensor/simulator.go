// SPDX-License-Identifier: MIT
package sensor

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// SimulatorOptions shapes the synthetic signal.
type SimulatorOptions struct {
	Channels   int
	Channel    int // Channel carrying the pulse; the others stay flat.
	BPM        float64
	Rest       float64
	Amplitude  float64
	PulseWidth time.Duration
	Noise      float64 // Peak uniform noise added to every sample.
	Seed       int64
	Tick       time.Duration
}

// Simulator generates a triangular pulse train on one channel over a flat
// resting load. The same options always produce the same samples.
type Simulator struct {
	opts SimulatorOptions
	rng  *rand.Rand
	n    int64
	bpm  atomic.Uint64 // float64 bits; adjustable while running
}

// NewSimulator validates opts and returns a simulator positioned at t=0.
func NewSimulator(opts SimulatorOptions) (*Simulator, error) {
	if opts.Channels < 1 {
		return nil, errors.New("simulator: at least one channel required")
	}
	if opts.Channel < 0 || opts.Channel >= opts.Channels {
		return nil, errors.New("simulator: pulse channel out of range")
	}
	if opts.BPM <= 0 || opts.Tick <= 0 {
		return nil, errors.New("simulator: bpm and tick must be positive")
	}
	if opts.PulseWidth <= 0 {
		opts.PulseWidth = 300 * time.Millisecond
	}

	seed := uint64(opts.Seed)
	s := &Simulator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	s.SetBPM(opts.BPM)
	return s, nil
}

func (s *Simulator) Channels() int { return s.opts.Channels }

// SetBPM changes the pulse rate from the next tick on.
func (s *Simulator) SetBPM(bpm float64) {
	s.bpm.Store(math.Float64bits(bpm))
}

// BPM returns the current pulse rate.
func (s *Simulator) BPM() float64 {
	return math.Float64frombits(s.bpm.Load())
}

// Read writes the frame for the next tick.
func (s *Simulator) Read(dst []int32) error {
	if len(dst) < s.opts.Channels {
		return errors.New("simulator: destination shorter than channel count")
	}

	now := time.Duration(s.n) * s.opts.Tick
	s.n++

	for ch := 0; ch < s.opts.Channels; ch++ {
		// Idle pads rest a little lower so channels are distinguishable.
		v := s.opts.Rest - 20*float64(ch)
		if ch == s.opts.Channel {
			v = s.opts.Rest + s.pulse(now)
		}
		if s.opts.Noise > 0 {
			v += (s.rng.Float64()*2 - 1) * s.opts.Noise
		}
		dst[ch] = int32(math.Round(v))
	}
	return nil
}

// pulse returns the triangle height at now within the current beat.
func (s *Simulator) pulse(now time.Duration) float64 {
	period := time.Duration(float64(time.Minute) / s.BPM())
	width := min(s.opts.PulseWidth, period)
	phase := now % period
	if phase > width {
		return 0
	}
	half := float64(width) / 2
	return s.opts.Amplitude * (1 - math.Abs(float64(phase)-half)/half)
}

func (s *Simulator) Close() error { return nil }

var _ Source = (*Simulator)(nil)
