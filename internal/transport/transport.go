// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned when a non-blocking send finds its queue full.
	// The reading is dropped.
	ErrQueueFull = errors.New("transport: queue full")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport: closed")
)

// Reading is the per-tick summary published to downstream consumers.
type Reading struct {
	DeviceID    string    `json:"device_id"`
	Envelope    float64   `json:"envelope"`
	BPMRaw      float64   `json:"bpm_raw"`
	BPMSmoothed float64   `json:"bpm_smoothed"`
	Status      string    `json:"status"`
	Alert       bool      `json:"alert"`
	Phase       string    `json:"phase"` // Alert lifecycle phase.
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

// Transport publishes readings. Send must never block the caller on network
// I/O. Implementations are safe for concurrent use.
type Transport interface {
	Send(r Reading) error
	Close() error
}
