// SPDX-License-Identifier: MIT
package sensor

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a recorded session, one WAV frame per tick. The file's
// sample rate is the tick rate it was recorded at.
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	channels int
	rate     int
	buf      *audio.IntBuffer // One frame, reused
}

// OpenWAV opens path and positions the decoder at the first frame.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav source: %w", err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wav source %s: not a valid wav file", path)
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("wav source %s: %w", path, err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		f.Close()
		return nil, fmt.Errorf("wav source %s: no channels", path)
	}

	return &WAVSource{
		file:     f,
		decoder:  d,
		channels: channels,
		rate:     int(d.SampleRate),
		buf: &audio.IntBuffer{
			Format: d.Format(),
			Data:   make([]int, channels),
		},
	}, nil
}

func (w *WAVSource) Channels() int { return w.channels }

// SampleRate returns the recorded tick rate in Hz.
func (w *WAVSource) SampleRate() int { return w.rate }

// TickInterval returns the period between recorded frames.
func (w *WAVSource) TickInterval() time.Duration {
	if w.rate <= 0 {
		return 0
	}
	return time.Second / time.Duration(w.rate)
}

// Read decodes the next frame. A partial or missing frame reports
// ErrEndOfStream.
func (w *WAVSource) Read(dst []int32) error {
	if len(dst) < w.channels {
		return fmt.Errorf("wav source: destination holds %d of %d channels", len(dst), w.channels)
	}

	w.buf.Data = w.buf.Data[:w.channels]
	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil {
		return fmt.Errorf("wav source: %w", err)
	}
	if n < w.channels {
		return ErrEndOfStream
	}
	for i := 0; i < w.channels; i++ {
		dst[i] = int32(w.buf.Data[i])
	}
	return nil
}

func (w *WAVSource) Close() error {
	return w.file.Close()
}

var _ Source = (*WAVSource)(nil)
