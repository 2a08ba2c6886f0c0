// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minEvent = 5 * time.Second

func TestEventMachineDebounce(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    AlertPhase
	}{
		{"Just short", minEvent - time.Millisecond, AlertArmed},
		{"Exactly", minEvent, AlertActive},
		{"Just over", minEvent + time.Millisecond, AlertActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewEventMachine(100, 90, minEvent)

			tr, _, _ := m.Step(110, 0)
			assert.Equal(t, Transition{From: AlertNormal, To: AlertArmed}, tr)

			tr, _, done := m.Step(110, tt.elapsed)
			assert.False(t, done)
			assert.Equal(t, tt.want, tr.To)
			assert.Equal(t, tt.want, m.Phase())
		})
	}
}

func TestEventMachineArmedDiscarded(t *testing.T) {
	m := NewEventMachine(100, 90, minEvent)
	m.Step(120, 0)
	m.Step(120, 2*time.Second)

	tr, _, done := m.Step(100, 3*time.Second) // Upper itself is not above
	assert.False(t, done)
	assert.Equal(t, Transition{From: AlertArmed, To: AlertNormal}, tr)

	_, ok := m.Since()
	assert.False(t, ok)
}

func TestEventMachineSummary(t *testing.T) {
	m := NewEventMachine(100, 90, minEvent)

	m.Step(110, 0)
	tr, _, _ := m.Step(110, 5*time.Second)
	require.Equal(t, AlertActive, tr.To)

	start, ok := m.Since()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), start)

	m.Step(130, 6*time.Second)
	tr, _, done := m.Step(95, 7*time.Second) // Between lower and upper holds
	assert.False(t, done)
	assert.False(t, tr.Changed())

	tr, sum, done := m.Step(89, 8*time.Second)
	require.True(t, done)
	assert.Equal(t, Transition{From: AlertActive, To: AlertNormal}, tr)
	assert.Equal(t, time.Duration(0), sum.Start)
	assert.Equal(t, 8*time.Second, sum.End)
	assert.Equal(t, 8*time.Second, sum.Duration)
	assert.Equal(t, 130.0, sum.MaxBPM)
	assert.InDelta(t, (110.0+130+95)/3, sum.AvgBPM, 1e-9)

	// Only one summary per episode.
	_, _, done = m.Step(80, 9*time.Second)
	assert.False(t, done)
	assert.Equal(t, AlertNormal, m.Phase())
}

func TestEventMachineReset(t *testing.T) {
	m := NewEventMachine(100, 90, minEvent)
	m.Step(110, 0)
	m.Step(110, minEvent)
	m.Reset()
	assert.Equal(t, AlertNormal, m.Phase())

	_, _, done := m.Step(50, 2*minEvent)
	assert.False(t, done)
}

func TestAlertPhaseString(t *testing.T) {
	assert.Equal(t, "NORMAL", AlertNormal.String())
	assert.Equal(t, "ARMED", AlertArmed.String())
	assert.Equal(t, "ACTIVE", AlertActive.String())
}
