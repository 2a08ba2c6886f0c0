// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spikeStep = 10 * time.Millisecond

// runSpikes drives a default normalizer and detector with one-tick spikes of
// 100 units on an otherwise flat envelope and returns every release.
func runSpikes(spikes []time.Duration, end time.Duration) []Peak {
	p := DefaultParams()
	n := NewNormalizer(p.EnvelopeAlpha, p.MADAlpha, p.MADFloor)
	d := NewPeakDetector(p.ArmZ, p.ReleaseZ, p.RefractoryMin, p.RefractoryMax)

	at := make(map[time.Duration]bool, len(spikes))
	for _, s := range spikes {
		at[s] = true
	}

	var releases []Peak
	for now := time.Duration(0); now <= end; now += spikeStep {
		v := 0.0
		if at[now] {
			v = 100
		}
		if pk := d.Step(n.Update(v, true), now); pk.Outcome != PeakNone {
			releases = append(releases, pk)
		}
	}
	return releases
}

func accepted(releases []Peak) []Peak {
	var out []Peak
	for _, r := range releases {
		if r.Accepted() {
			out = append(out, r)
		}
	}
	return out
}

func TestPeakDetectorPeriodicSpikes(t *testing.T) {
	tests := []struct {
		period time.Duration
		first  time.Duration
		count  int
	}{
		{250 * time.Millisecond, 250 * time.Millisecond, 10},
		{500 * time.Millisecond, 500 * time.Millisecond, 10},
		{800 * time.Millisecond, 800 * time.Millisecond, 10},
		{time.Second, time.Second, 10},
		{2 * time.Second, 2 * time.Second, 10},
		{6 * time.Second, time.Second, 4},
	}

	for _, tt := range tests {
		t.Run(tt.period.String(), func(t *testing.T) {
			spikes := make([]time.Duration, tt.count)
			for i := range spikes {
				spikes[i] = tt.first + time.Duration(i)*tt.period
			}
			releases := runSpikes(spikes, spikes[len(spikes)-1]+time.Second)

			require.Len(t, releases, tt.count)
			assert.Equal(t, PeakSeed, releases[0].Outcome)
			assert.Equal(t, tt.first+spikeStep, releases[0].At)

			beats := accepted(releases)
			require.Len(t, beats, tt.count-1)
			want := 60000 / float64(tt.period.Milliseconds())
			for _, b := range beats {
				assert.Equal(t, tt.period, b.Interval)
				assert.InDelta(t, want, b.BPM, 1e-9)
			}
		})
	}
}

func TestPeakDetectorTooFastNeverCounts(t *testing.T) {
	var spikes []time.Duration
	for s := 100 * time.Millisecond; s < 4*time.Second; s += 100 * time.Millisecond {
		spikes = append(spikes, s)
	}
	releases := runSpikes(spikes, 5*time.Second)

	assert.Empty(t, accepted(releases))
	for _, r := range releases[1:] {
		assert.Equal(t, PeakTooFast, r.Outcome)
	}
}

func TestPeakDetectorRefractoryGating(t *testing.T) {
	ms := func(v ...int) []time.Duration {
		out := make([]time.Duration, len(v))
		for i, x := range v {
			out[i] = time.Duration(x) * time.Millisecond
		}
		return out
	}

	tests := []struct {
		name     string
		spikes   []time.Duration
		end      time.Duration
		wantAt   []time.Duration
		wantBPM  []float64
		rejected []PeakOutcome
	}{
		{
			name:     "Bounce resets the interval",
			spikes:   ms(1000, 2000, 2100, 3000),
			end:      4 * time.Second,
			wantAt:   ms(2010, 3010),
			wantBPM:  []float64{60, 60000.0 / 900},
			rejected: []PeakOutcome{PeakSeed, PeakTooFast},
		},
		{
			name:     "Long gap reseeds",
			spikes:   ms(1000, 8000, 9000),
			end:      10 * time.Second,
			wantAt:   ms(9010),
			wantBPM:  []float64{60},
			rejected: []PeakOutcome{PeakSeed, PeakTooSlow},
		},
		{
			name:     "Rejected bounce below minimum",
			spikes:   ms(1000, 1240, 2000),
			end:      3 * time.Second,
			wantAt:   ms(2010),
			wantBPM:  []float64{60000.0 / 760},
			rejected: []PeakOutcome{PeakSeed, PeakTooFast},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			releases := runSpikes(tt.spikes, tt.end)

			var rejected []PeakOutcome
			for _, r := range releases {
				if !r.Accepted() {
					rejected = append(rejected, r.Outcome)
				}
			}
			assert.Equal(t, tt.rejected, rejected)

			beats := accepted(releases)
			require.Len(t, beats, len(tt.wantAt))
			for i, b := range beats {
				assert.Equal(t, tt.wantAt[i], b.At)
				assert.InDelta(t, tt.wantBPM[i], b.BPM, 1e-9)
			}
		})
	}
}

func TestPeakDetectorHysteresis(t *testing.T) {
	d := NewPeakDetector(3, 1, 250*time.Millisecond, 6*time.Second)

	steps := []struct {
		z     float64
		armed bool
	}{
		{2.9, false}, // Below arm
		{3.0, false}, // Arm is strict
		{3.5, true},
		{5.0, true},
		{1.0, true}, // Release is strict
		{2.0, true}, // Between thresholds holds
		{0.5, false},
	}

	for i, s := range steps {
		pk := d.Step(s.z, time.Duration(i)*time.Millisecond)
		assert.Equal(t, s.armed, d.Armed(), "step %d z=%v", i, s.z)
		if i == len(steps)-1 {
			assert.Equal(t, PeakSeed, pk.Outcome)
			assert.Equal(t, 5.0, pk.PeakZ)
		}
	}

	last, ok := d.previousRelease()
	assert.True(t, ok)
	assert.Equal(t, 6*time.Millisecond, last)

	d.Reset()
	_, ok = d.previousRelease()
	assert.False(t, ok)
	assert.Equal(t, PhaseReleased, d.Phase())
}

func TestIntervalToBPM(t *testing.T) {
	assert.Equal(t, 75.0, IntervalToBPM(800*time.Millisecond))
	assert.Equal(t, 240.0, IntervalToBPM(250*time.Millisecond))
	assert.Zero(t, IntervalToBPM(0))
}

func TestPeakDetectorHotPath(t *testing.T) {
	d := NewPeakDetector(3, 1, 250*time.Millisecond, 6*time.Second)
	var now time.Duration
	zs := []float64{0, 4, 0, 0, 0}
	allocs := testing.AllocsPerRun(1000, func() {
		for _, z := range zs {
			now += 100 * time.Millisecond
			d.Step(z, now)
		}
	})
	if allocs > 0 {
		t.Errorf("Step allocated %.1f times per run", allocs)
	}
}
