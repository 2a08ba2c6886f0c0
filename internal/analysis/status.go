// SPDX-License-Identifier: MIT
package analysis

// Status is the coarse physiological classification of a smoothed BPM.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusNormal
	StatusHigh
	StatusLow
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusHigh:
		return "high"
	case StatusLow:
		return "low"
	default:
		return "unknown"
	}
}

// Alert reports whether the status warrants attention.
func (s Status) Alert() bool { return s == StatusHigh || s == StatusLow }

// Classify maps a smoothed BPM onto a Status. Zero means no data.
func Classify(bpm, high, low float64) Status {
	switch {
	case bpm <= 0:
		return StatusUnknown
	case bpm > high:
		return StatusHigh
	case bpm < low:
		return StatusLow
	default:
		return StatusNormal
	}
}
