// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"time"

	"pulse/internal/analysis"
	"pulse/internal/metrics"
	"pulse/internal/transport"
)

// observe publishes one tick. mean and mad are the normalizer statistics
// after the tick.
func observe(tick analysis.Tick, mean, mad float64, elapsed time.Duration) {
	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(elapsed.Seconds())
	metrics.BPM.Set(tick.SmoothedBPM)
	metrics.Envelope.Set(tick.Envelope)
	metrics.Z.Set(tick.Z)
	metrics.EnvelopeMean.Set(mean)
	metrics.EnvelopeMAD.Set(mad)

	switch tick.Peak.Outcome {
	case analysis.PeakAccepted:
		metrics.PeaksAccepted.Inc()
	case analysis.PeakSeed:
		metrics.PeaksRejected.WithLabelValues(metrics.ReasonFirst).Inc()
	case analysis.PeakTooFast:
		metrics.PeaksRejected.WithLabelValues(metrics.ReasonFast).Inc()
	case analysis.PeakTooSlow:
		metrics.PeaksRejected.WithLabelValues(metrics.ReasonSlow).Inc()
	}

	if tick.Transition.Changed() {
		metrics.AlertTransitions.WithLabelValues(tick.Transition.To.String()).Inc()
	}
	if tick.Completed {
		metrics.EventsCompleted.Inc()
	}
}

// instrumented counts the failures of one named transport. Readings refused
// locally, by a full queue or an open circuit, count as dropped rather than
// failed.
type instrumented struct {
	name string
	transport.Transport
}

func (i instrumented) Send(r transport.Reading) error {
	err := i.Transport.Send(r)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrQueueFull), errors.Is(err, transport.ErrCircuitOpen):
		metrics.ReadingsDropped.Inc()
	default:
		metrics.TransportFailures.WithLabelValues(i.name).Inc()
	}
	return err
}
