// SPDX-License-Identifier: MIT
package analysis

import "time"

// AlertPhase names the lifecycle state of the alert machine.
type AlertPhase uint8

const (
	AlertNormal AlertPhase = iota
	AlertArmed
	AlertActive
)

func (p AlertPhase) String() string {
	switch p {
	case AlertNormal:
		return "NORMAL"
	case AlertArmed:
		return "ARMED"
	case AlertActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Transition records a phase change. From == To means nothing changed.
type Transition struct {
	From, To AlertPhase
}

// Changed reports whether the transition moved between phases.
func (t Transition) Changed() bool { return t.From != t.To }

// Summary describes one completed ACTIVE episode.
type Summary struct {
	Start    time.Duration
	End      time.Duration
	Duration time.Duration
	MaxBPM   float64
	AvgBPM   float64
}

type alertState interface {
	phase() AlertPhase
}

type alertNormal struct{}

type alertArmed struct {
	start time.Duration
}

type alertActive struct {
	start time.Duration
	max   float64
	sum   float64
	count int
}

func (*alertNormal) phase() AlertPhase { return AlertNormal }
func (*alertArmed) phase() AlertPhase  { return AlertArmed }
func (*alertActive) phase() AlertPhase { return AlertActive }

// EventMachine debounces smoothed BPM into alert episodes. An episode must
// stay above upper for minDuration before it becomes ACTIVE, and ends only
// once the rate drops below lower.
type EventMachine struct {
	upper       float64
	lower       float64
	minDuration time.Duration

	state  alertState
	normal alertNormal
	armed  alertArmed
	active alertActive
}

// NewEventMachine returns a machine in the NORMAL phase.
func NewEventMachine(upper, lower float64, minDuration time.Duration) *EventMachine {
	m := &EventMachine{upper: upper, lower: lower, minDuration: minDuration}
	m.state = &m.normal
	return m
}

// Phase returns the current alert phase.
func (m *EventMachine) Phase() AlertPhase { return m.state.phase() }

// Since returns the start of the current ARMED or ACTIVE phase.
func (m *EventMachine) Since() (time.Duration, bool) {
	switch s := m.state.(type) {
	case *alertArmed:
		return s.start, true
	case *alertActive:
		return s.start, true
	}
	return 0, false
}

// Step feeds one smoothed BPM sample. When an ACTIVE episode completes the
// returned bool is true and Summary is filled in.
func (m *EventMachine) Step(bpm float64, now time.Duration) (Transition, Summary, bool) {
	from := m.state.phase()

	switch s := m.state.(type) {
	case *alertNormal:
		if bpm > m.upper {
			m.armed = alertArmed{start: now}
			m.state = &m.armed
		}

	case *alertArmed:
		switch {
		case bpm <= m.upper:
			m.state = &m.normal
		case now-s.start >= m.minDuration:
			m.active = alertActive{start: s.start, max: bpm, sum: bpm, count: 1}
			m.state = &m.active
		}

	case *alertActive:
		if bpm < m.lower {
			sum := Summary{
				Start:    s.start,
				End:      now,
				Duration: now - s.start,
				MaxBPM:   s.max,
				AvgBPM:   s.sum / float64(s.count),
			}
			m.active = alertActive{}
			m.state = &m.normal
			return Transition{From: from, To: AlertNormal}, sum, true
		}
		if bpm > s.max {
			s.max = bpm
		}
		s.sum += bpm
		s.count++
	}

	return Transition{From: from, To: m.state.phase()}, Summary{}, false
}

// Reset drops any in-flight episode without emitting a summary.
func (m *EventMachine) Reset() {
	m.armed = alertArmed{}
	m.active = alertActive{}
	m.state = &m.normal
}
