// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickPeriod = 20 * time.Millisecond

// pulseTrain describes a run of triangular load pulses on one channel.
type pulseTrain struct {
	start  time.Duration
	period time.Duration
	width  time.Duration
	cycles int
	amp    float64
}

func (p pulseTrain) at(now time.Duration) float64 {
	half := float64(p.width) / 2
	for c := 0; c < p.cycles; c++ {
		st := p.start + time.Duration(c)*p.period
		if now >= st && now <= st+p.width {
			d := math.Abs(float64(now - st - p.width/2))
			return p.amp * (1 - d/half)
		}
	}
	return 0
}

// scenario renders channel 0 as a 500-unit rest load plus trains and
// channel 1 as a flat 480.
func scenario(now time.Duration, trains ...pulseTrain) []int32 {
	v := 500.0
	for _, tr := range trains {
		v += tr.at(now)
	}
	return []int32{int32(math.Round(v)), 480}
}

type runResult struct {
	ticks       []Tick
	beats       []Peak
	releases    []Peak
	transitions []Tick
	summaries   []Summary
}

func runScenario(t *testing.T, p Params, end time.Duration, trains ...pulseTrain) runResult {
	t.Helper()
	c, err := NewController(p)
	require.NoError(t, err)

	var r runResult
	for now := time.Duration(0); now <= end; now += tickPeriod {
		tk := c.Update(now, scenario(now, trains...))
		r.ticks = append(r.ticks, tk)
		if tk.Peak.Outcome != PeakNone {
			r.releases = append(r.releases, tk.Peak)
		}
		if tk.Beat() {
			r.beats = append(r.beats, tk.Peak)
		}
		if tk.Transition.Changed() {
			r.transitions = append(r.transitions, tk)
		}
		if tk.Completed {
			r.summaries = append(r.summaries, tk.Summary)
		}
	}
	return r
}

var restingPulse = pulseTrain{
	start:  2 * time.Second,
	period: 800 * time.Millisecond,
	width:  600 * time.Millisecond,
	cycles: 10,
	amp:    40,
}

func TestNewControllerRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.ReleaseZ = 5
	_, err := NewController(p)
	assert.Error(t, err)
}

func TestControllerFlatInput(t *testing.T) {
	r := runScenario(t, DefaultParams(), 12*time.Second)

	assert.Empty(t, r.releases)
	assert.Empty(t, r.transitions)
	last := r.ticks[len(r.ticks)-1]
	assert.Zero(t, last.Envelope)
	assert.Less(t, math.Abs(last.Z), 1.0)
	assert.Equal(t, StatusUnknown, last.Status)
}

func TestControllerRestingPulse(t *testing.T) {
	r := runScenario(t, DefaultParams(), 12*time.Second, restingPulse)

	require.Len(t, r.releases, 10)
	assert.Equal(t, PeakSeed, r.releases[0].Outcome)
	assert.Equal(t, 2260*time.Millisecond, r.releases[0].At)

	require.Len(t, r.beats, 9)
	assert.InDelta(t, 60000.0/820, r.beats[0].BPM, 1e-9)
	for _, b := range r.beats[1:] {
		assert.Equal(t, 800*time.Millisecond, b.Interval)
		assert.InDelta(t, 75.0, b.BPM, 1e-9)
	}

	last := r.ticks[len(r.ticks)-1]
	assert.InDelta(t, 75.0, last.SmoothedBPM, 1e-9)
	assert.InDelta(t, 75.0, last.RawBPM, 1e-9)
	assert.Equal(t, StatusNormal, last.Status)
	assert.False(t, last.Status.Alert())
	assert.Empty(t, r.transitions, "resting rate must never leave NORMAL")
	assert.Empty(t, r.summaries)
}

func TestControllerTachycardiaEpisode(t *testing.T) {
	fast := pulseTrain{start: 2 * time.Second, period: 500 * time.Millisecond, width: 300 * time.Millisecond, cycles: 24, amp: 40}
	slow := pulseTrain{start: 14 * time.Second, period: time.Second, width: 300 * time.Millisecond, cycles: 10, amp: 40}

	p := DefaultParams()
	c, err := NewController(p)
	require.NoError(t, err)

	var transitions []Tick
	var summaries []Summary
	for now := time.Duration(0); now <= 20*time.Second; now += tickPeriod {
		tk := c.Update(now, scenario(now, fast, slow))
		if tk.Transition.Changed() {
			transitions = append(transitions, tk)
			if tk.Transition.To == AlertActive {
				since, ok := c.AlertSince()
				assert.True(t, ok)
				assert.Equal(t, 2700*time.Millisecond, since, "episode starts at the arm time")
			}
		}
		if tk.Completed {
			summaries = append(summaries, tk.Summary)
			_, ok := c.AlertSince()
			assert.False(t, ok)
			assert.Zero(t, c.BPMCount(), "ring cleared on completion")
			assert.Zero(t, tk.RawBPM)
		}
	}

	require.Len(t, transitions, 3)
	want := []struct {
		at       time.Duration
		from, to AlertPhase
	}{
		{2700 * time.Millisecond, AlertNormal, AlertArmed},
		{7700 * time.Millisecond, AlertArmed, AlertActive},
		{17200 * time.Millisecond, AlertActive, AlertNormal},
	}
	for i, w := range want {
		assert.Equal(t, w.at, transitions[i].At)
		assert.Equal(t, Transition{From: w.from, To: w.to}, transitions[i].Transition)
	}
	assert.Equal(t, StatusHigh, transitions[1].Status)

	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, 2700*time.Millisecond, s.Start)
	assert.Equal(t, 17200*time.Millisecond, s.End)
	assert.Equal(t, 14500*time.Millisecond, s.Duration)
	assert.InDelta(t, 120.0, s.MaxBPM, 1e-9)
	assert.InDelta(t, 116.21, s.AvgBPM, 0.01)
}

func TestControllerDeterministic(t *testing.T) {
	a := runScenario(t, DefaultParams(), 12*time.Second, restingPulse)
	b := runScenario(t, DefaultParams(), 12*time.Second, restingPulse)
	assert.Equal(t, a.releases, b.releases)
	assert.Equal(t, a.ticks, b.ticks)
}

func TestControllerModes(t *testing.T) {
	c, err := NewController(DefaultParams())
	require.NoError(t, err)

	modeAt := map[time.Duration]CalibrationMode{}
	for now := time.Duration(0); now <= 11*time.Second; now += tickPeriod {
		modeAt[now] = c.Update(now, []int32{500, 480}).Mode
	}

	assert.Equal(t, ModeCalibrating, modeAt[1980*time.Millisecond])
	assert.Equal(t, ModeTracking, modeAt[2*time.Second])
	assert.Equal(t, ModeTracking, modeAt[9980*time.Millisecond])
	assert.Equal(t, ModeRezeroing, modeAt[10*time.Second])
}

func TestControllerRezeroFollowsDrift(t *testing.T) {
	p := DefaultParams()
	c, err := NewController(p)
	require.NoError(t, err)

	// A slow creep that the baseline must absorb without triggering beats.
	for now := time.Duration(0); now <= 30*time.Second; now += tickPeriod {
		drift := int32(now / (200 * time.Millisecond))
		tk := c.Update(now, []int32{500 + drift, 480})
		assert.False(t, tk.Beat(), "drift produced a beat at %s", now)
	}
	ch := c.Channels()[0]
	assert.Less(t, ch.Deviation, 1.0)
}

func TestControllerFreezeStatsWhileArmed(t *testing.T) {
	p := DefaultParams()
	p.Channels = 1
	p.SmoothingWindow = 1
	p.Calibration = 0
	p.FreezeStatsWhileArmed = true

	c, err := NewController(p)
	require.NoError(t, err)

	c.Update(0, []int32{100})
	tk := c.Update(20*time.Millisecond, []int32{200})
	require.Greater(t, tk.Z, p.ArmZ)
	mean, mad := c.Statistics()

	tk = c.Update(40*time.Millisecond, []int32{200})
	require.Greater(t, tk.Z, p.ReleaseZ, "detector must still be armed")
	m2, d2 := c.Statistics()
	assert.Equal(t, mean, m2)
	assert.Equal(t, mad, d2)
}

func TestControllerIgnoresExtraAndMissingChannels(t *testing.T) {
	c, err := NewController(DefaultParams())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		c.Update(0, []int32{1, 2, 3, 4})
		c.Update(20*time.Millisecond, []int32{1})
		c.Update(40*time.Millisecond, nil)
	})
	assert.Len(t, c.Channels(), 2)
	assert.Equal(t, 40*time.Millisecond, c.Last().At)
}

func TestControllerUpdateHotPath(t *testing.T) {
	c, err := NewController(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	raw := make([]int32, 2)
	var now time.Duration

	allocs := testing.AllocsPerRun(2000, func() {
		now += tickPeriod
		raw[0] = int32(math.Round(500 + restingPulse.at(now%(10*time.Second))))
		raw[1] = 480
		c.Update(now, raw)
	})
	if allocs > 0 {
		t.Errorf("Update allocated %.1f times per run", allocs)
	}
}

func BenchmarkControllerUpdate(b *testing.B) {
	c, err := NewController(DefaultParams())
	if err != nil {
		b.Fatal(err)
	}
	raw := []int32{500, 480}
	var now time.Duration
	for b.Loop() {
		now += tickPeriod
		c.Update(now, raw)
	}
}
