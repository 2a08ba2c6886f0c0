// SPDX-License-Identifier: MIT
package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietSimulator(t *testing.T) *Simulator {
	t.Helper()
	s, err := NewSimulator(SimulatorOptions{
		Channels:   2,
		Channel:    0,
		BPM:        60,
		Rest:       500,
		Amplitude:  40,
		PulseWidth: 400 * time.Millisecond,
		Tick:       20 * time.Millisecond,
	})
	require.NoError(t, err)
	return s
}

func TestSimulatorPulseShape(t *testing.T) {
	s := quietSimulator(t)
	frame := make([]int32, 2)

	want := map[int]int32{
		0:  500, // Pulse base
		5:  520, // Half way up
		10: 540, // Apex at width/2
		20: 500, // Pulse end
		50: 500, // Between beats
		60: 540, // Apex of the second beat
	}
	for tick := 0; tick <= 60; tick++ {
		require.NoError(t, s.Read(frame))
		assert.Equal(t, int32(480), frame[1], "idle channel at tick %d", tick)
		if v, ok := want[tick]; ok {
			assert.Equal(t, v, frame[0], "pulse channel at tick %d", tick)
		}
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	opts := SimulatorOptions{
		Channels: 3, Channel: 1, BPM: 90, Rest: 500, Amplitude: 40,
		PulseWidth: 300 * time.Millisecond, Noise: 2, Seed: 42, Tick: 20 * time.Millisecond,
	}
	a, err := NewSimulator(opts)
	require.NoError(t, err)
	b, err := NewSimulator(opts)
	require.NoError(t, err)

	fa, fb := make([]int32, 3), make([]int32, 3)
	for i := 0; i < 500; i++ {
		require.NoError(t, a.Read(fa))
		require.NoError(t, b.Read(fb))
		require.Equal(t, fa, fb, "tick %d", i)
	}
}

func TestSimulatorSetBPM(t *testing.T) {
	s := quietSimulator(t)
	s.SetBPM(120)
	assert.Equal(t, 120.0, s.BPM())
}

func TestSimulatorOptionErrors(t *testing.T) {
	base := SimulatorOptions{Channels: 2, BPM: 60, Tick: 20 * time.Millisecond}

	tests := []struct {
		name   string
		mutate func(*SimulatorOptions)
	}{
		{"No channels", func(o *SimulatorOptions) { o.Channels = 0 }},
		{"Channel out of range", func(o *SimulatorOptions) { o.Channel = 2 }},
		{"Zero BPM", func(o *SimulatorOptions) { o.BPM = 0 }},
		{"Zero tick", func(o *SimulatorOptions) { o.Tick = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.mutate(&o)
			_, err := NewSimulator(o)
			assert.Error(t, err)
		})
	}
}

func TestSimulatorShortDestination(t *testing.T) {
	s := quietSimulator(t)
	assert.Error(t, s.Read(make([]int32, 1)))
}
