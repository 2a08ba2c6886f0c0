// SPDX-License-Identifier: MIT
package sensor

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	applog "pulse/internal/log"
	"pulse/pkg/bitint"
)

// LineInOptions configures PortAudio capture.
type LineInOptions struct {
	DeviceID        int
	Channels        int
	SampleRate      float64
	FramesPerBuffer int // Rounded up to a power of two.
	LowLatency      bool
	FullScale       float64 // Reading reported for a full-scale amplitude.
	GateThreshold   float64 // Fraction of full scale; 0 leaves the gate off.
}

// LineIn captures a force sensor wired to an audio input. Each callback
// buffer is reduced to the mean absolute amplitude per channel, scaled to
// FullScale, and published for the tick loop to pick up.
type LineIn struct {
	opts         LineInOptions
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Written by the PortAudio callback, read by the tick loop.
	levels  []atomic.Int32
	buffers atomic.Uint64

	gateEnabled   atomic.Bool
	gateThreshold atomic.Int32
}

// NewLineIn opens and starts the input stream. PortAudio must already be
// initialised.
func NewLineIn(opts LineInOptions) (*LineIn, error) {
	if opts.Channels < 1 {
		return nil, errors.New("line-in: at least one channel required")
	}
	if opts.FullScale <= 0 {
		return nil, errors.New("line-in: full scale must be positive")
	}
	if !bitint.IsPowerOfTwo(opts.FramesPerBuffer) {
		rounded := bitint.NextPowerOfTwo(opts.FramesPerBuffer)
		applog.Infof("LineIn: Rounding frames per buffer %d up to %d", opts.FramesPerBuffer, rounded)
		opts.FramesPerBuffer = rounded
	}

	device, err := InputDevice(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < opts.Channels {
		return nil, fmt.Errorf("line-in: device %s has %d input channels, need %d",
			device.Name, device.MaxInputChannels, opts.Channels)
	}

	l := &LineIn{
		opts:        opts,
		inputDevice: device,
		levels:      make([]atomic.Int32, opts.Channels),
	}
	if opts.LowLatency {
		l.inputLatency = device.DefaultLowInputLatency
	} else {
		l.inputLatency = device.DefaultHighInputLatency
	}
	if opts.GateThreshold > 0 {
		l.SetGateThreshold(opts.GateThreshold)
		l.EnableGate()
		applog.Infof("LineIn: Noise gate at %.3f of full scale", l.GateThreshold())
	}

	if err := l.startInputStream(); err != nil {
		return nil, err
	}
	applog.Infof("LineIn: Capturing %d channels from %s at %.0f Hz (%d frames per buffer)",
		opts.Channels, device.Name, opts.SampleRate, opts.FramesPerBuffer)
	return l, nil
}

func (l *LineIn) startInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: l.opts.Channels,
			Device:   l.inputDevice,
			Latency:  l.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: l.opts.FramesPerBuffer,
		SampleRate:      l.opts.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, l.processInputStream)
	if err != nil {
		return fmt.Errorf("line-in: failed to open stream: %w", err)
	}
	l.inputStream = stream

	if err := l.inputStream.Start(); err != nil {
		l.inputStream.Close()
		return fmt.Errorf("line-in: failed to start stream: %w", err)
	}
	return nil
}

// processInputStream is the PortAudio callback. It runs on PortAudio's
// thread and must not allocate.
func (l *LineIn) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if l.gated(in) {
		for i := range l.levels {
			l.levels[i].Store(0)
		}
	} else {
		reduceLevels(in, l.levels, l.opts.FullScale)
	}
	l.buffers.Add(1)
}

// reduceLevels stores the scaled mean absolute amplitude of each channel of
// the interleaved buffer in into levels.
func reduceLevels(in []int32, levels []atomic.Int32, fullScale float64) {
	channels := len(levels)
	frames := len(in) / channels
	if frames == 0 {
		return
	}
	for ch := 0; ch < channels; ch++ {
		var sum float64
		for i := ch; i < frames*channels; i += channels {
			sum += math.Abs(float64(in[i]))
		}
		mean := sum / float64(frames)
		levels[ch].Store(int32(math.Round(mean / math.MaxInt32 * fullScale)))
	}
}

func (l *LineIn) Channels() int { return l.opts.Channels }

// Read copies the most recent per-channel levels.
func (l *LineIn) Read(dst []int32) error {
	if len(dst) < len(l.levels) {
		return fmt.Errorf("line-in: destination holds %d of %d channels", len(dst), len(l.levels))
	}
	for i := range l.levels {
		dst[i] = l.levels[i].Load()
	}
	return nil
}

// Buffers returns how many capture buffers the callback has processed.
func (l *LineIn) Buffers() uint64 { return l.buffers.Load() }

// Close stops and closes the input stream.
func (l *LineIn) Close() error {
	if l.inputStream == nil {
		return nil
	}
	if err := l.inputStream.Stop(); err != nil {
		return err
	}
	if err := l.inputStream.Close(); err != nil {
		return err
	}
	l.inputStream = nil
	return nil
}

var _ Source = (*LineIn)(nil)
