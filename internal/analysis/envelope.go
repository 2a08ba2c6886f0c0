// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FuseEnvelope returns the strongest concurrent deviation across channels.
// A maximum rather than a sum keeps a stimulus on a single pad from being
// diluted by the idle ones.
func FuseEnvelope(deviations []float64) float64 {
	if len(deviations) == 0 {
		return 0
	}
	return floats.Max(deviations)
}

// Normalizer keeps running EMA statistics of the fused envelope and scores
// each sample against them.
type Normalizer struct {
	mean     float64
	mad      float64
	floor    float64
	envAlpha float64
	madAlpha float64
}

// NewNormalizer returns a normalizer with the given EMA weights and MAD floor.
func NewNormalizer(envAlpha, madAlpha, floor float64) Normalizer {
	return Normalizer{envAlpha: envAlpha, madAlpha: madAlpha, floor: floor}
}

// Score returns the z-score of v against the statistics accumulated so far.
func (n *Normalizer) Score(v float64) float64 {
	return (v - n.mean) / math.Max(n.mad, n.floor)
}

// Observe folds v into the running mean and MAD.
func (n *Normalizer) Observe(v float64) {
	dev := math.Abs(v - n.mean)
	n.mean += n.envAlpha * (v - n.mean)
	n.mad += n.madAlpha * (dev - n.mad)
}

// Update scores v and then, when learn is set, folds it into the statistics.
func (n *Normalizer) Update(v float64, learn bool) float64 {
	z := n.Score(v)
	if learn {
		n.Observe(v)
	}
	return z
}

// Mean returns the running envelope mean.
func (n *Normalizer) Mean() float64 { return n.mean }

// MAD returns the running mean absolute deviation, before flooring.
func (n *Normalizer) MAD() float64 { return n.mad }
