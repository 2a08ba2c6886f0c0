package utils

import (
	"math"
	"sync"
	"time"

	"pulse/internal/sensor"
	"pulse/internal/transport"
)

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu       sync.Mutex
	readings []transport.Reading
	closed   bool

	Err error // Returned from every Send when set.
}

// Send stores the reading for later inspection instead of transmitting.
func (m *MockTransport) Send(r transport.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.readings = append(m.readings, r)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Readings returns a copy of everything sent so far.
func (m *MockTransport) Readings() []transport.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.Reading(nil), m.readings...)
}

// Last returns the most recent reading.
func (m *MockTransport) Last() (transport.Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.readings) == 0 {
		return transport.Reading{}, false
	}
	return m.readings[len(m.readings)-1], true
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FrameSource replays pre-rendered channels one frame per Read and then
// reports sensor.ErrEndOfStream.
type FrameSource struct {
	channels [][]int32
	pos      int
}

// NewFrameSource builds a source from per-channel sample slices. Channels
// shorter than the first are padded with their last value.
func NewFrameSource(channels ...[]int32) *FrameSource {
	return &FrameSource{channels: channels}
}

func (f *FrameSource) Channels() int { return len(f.channels) }

func (f *FrameSource) Len() int {
	if len(f.channels) == 0 {
		return 0
	}
	return len(f.channels[0])
}

func (f *FrameSource) Read(dst []int32) error {
	if f.pos >= f.Len() {
		return sensor.ErrEndOfStream
	}
	for ch, samples := range f.channels {
		if ch >= len(dst) {
			break
		}
		switch {
		case f.pos < len(samples):
			dst[ch] = samples[f.pos]
		case len(samples) > 0:
			dst[ch] = samples[len(samples)-1]
		}
	}
	f.pos++
	return nil
}

func (f *FrameSource) Close() error { return nil }

// PulseTrain describes cycles of triangular load pulses starting at Start.
type PulseTrain struct {
	Start  time.Duration
	Period time.Duration
	Width  time.Duration
	Cycles int
	Amp    float64
}

// At returns the pulse height at now.
func (p PulseTrain) At(now time.Duration) float64 {
	half := float64(p.Width) / 2
	for c := 0; c < p.Cycles; c++ {
		st := p.Start + time.Duration(c)*p.Period
		if now >= st && now <= st+p.Width {
			d := math.Abs(float64(now - st - p.Width/2))
			return p.Amp * (1 - d/half)
		}
	}
	return 0
}

// GeneratePulseChannel renders n ticks of rest plus every train.
func GeneratePulseChannel(n int, tick time.Duration, rest float64, trains ...PulseTrain) []int32 {
	buffer := make([]int32, n)
	for i := range buffer {
		now := time.Duration(i) * tick
		v := rest
		for _, tr := range trains {
			v += tr.At(now)
		}
		buffer[i] = int32(math.Round(v))
	}
	return buffer
}

// GenerateFlatChannel renders n ticks of a constant load.
func GenerateFlatChannel(n int, value int32) []int32 {
	buffer := make([]int32, n)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// GenerateDriftChannel renders a load rising by slope units per second.
func GenerateDriftChannel(n int, tick time.Duration, start, slope float64) []int32 {
	buffer := make([]int32, n)
	for i := range buffer {
		secs := (time.Duration(i) * tick).Seconds()
		buffer[i] = int32(math.Round(start + slope*secs))
	}
	return buffer
}

var _ transport.Transport = (*MockTransport)(nil)
var _ sensor.Source = (*FrameSource)(nil)
