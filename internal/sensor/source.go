// SPDX-License-Identifier: MIT
/*
Package sensor provides the raw force-sample sources that feed the pulse
pipeline, one frame of int32 samples per tick:

  - Simulator: deterministic synthetic pulse train
  - WAVSource: replay of a recorded session
  - LineIn: live capture through a PortAudio input device

and a Recorder that writes every tick's frame to a WAV file.
*/
package sensor

import (
	"errors"
	"fmt"

	"pulse/internal/config"
)

// ErrEndOfStream is returned by Read when a finite source is exhausted.
var ErrEndOfStream = errors.New("sensor: end of stream")

// Source produces one raw sample per channel per tick.
type Source interface {
	// Channels returns the number of samples Read writes.
	Channels() int
	// Read fills dst[:Channels()] with the current frame.
	Read(dst []int32) error
	Close() error
}

// Open builds the source selected by cfg.Sensor.Source.
func Open(cfg *config.Config) (Source, error) {
	s := cfg.Sensor
	switch s.Source {
	case config.SourceSimulator:
		return NewSimulator(SimulatorOptions{
			Channels:   s.Channels,
			Channel:    s.Simulator.Channel,
			BPM:        s.Simulator.BPM,
			Rest:       s.Simulator.Rest,
			Amplitude:  s.Simulator.Amplitude,
			PulseWidth: s.Simulator.PulseWidth,
			Noise:      s.Simulator.Noise,
			Seed:       s.Simulator.Seed,
			Tick:       s.TickInterval,
		})
	case config.SourceWAV:
		return OpenWAV(s.WAVPath)
	case config.SourceLineIn:
		return NewLineIn(LineInOptions{
			DeviceID:        s.InputDevice,
			Channels:        s.Channels,
			SampleRate:      s.SampleRate,
			FramesPerBuffer: s.FramesPerBuffer,
			LowLatency:      s.LowLatency,
			FullScale:       s.FullScale,
			GateThreshold:   s.GateThreshold,
		})
	default:
		return nil, fmt.Errorf("sensor: unknown source %q", s.Source)
	}
}
