// SPDX-License-Identifier: MIT
package sensor

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes every tick's raw frame to a 32-bit PCM WAV file whose
// sample rate is the tick rate, so WAVSource can replay it unchanged.
type Recorder struct {
	channels int
	rate     int

	isRecording atomic.Bool
	mu          sync.Mutex // Serialises Write against Stop.
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion.
}

// NewRecorder returns an idle recorder for frames of the given width.
func NewRecorder(channels, tickRate int) (*Recorder, error) {
	if channels < 1 || tickRate < 1 {
		return nil, fmt.Errorf("recorder: invalid format %d channels at %d Hz", channels, tickRate)
	}
	return &Recorder{channels: channels, rate: tickRate}, nil
}

// Start creates filename and begins recording.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return errors.New("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.rate, 32, r.channels, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: r.channels,
			SampleRate:  r.rate,
		},
		SourceBitDepth: 32,
		Data:           make([]int, r.channels),
	}

	r.isRecording.Store(true)
	return nil
}

// Recording reports whether frames are currently being written.
func (r *Recorder) Recording() bool { return r.isRecording.Load() }

// Write appends one frame. It is a no-op while stopped.
func (r *Recorder) Write(frame []int32) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	n := min(len(frame), r.channels)
	for i := 0; i < n; i++ {
		r.sampleBuf.Data[i] = int(frame[i])
	}
	for i := n; i < r.channels; i++ {
		r.sampleBuf.Data[i] = 0
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording frame: %w", err)
	}
	return nil
}

// Stop finalises the WAV header and closes the file.
func (r *Recorder) Stop() error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.isRecording.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}

	return nil
}

// Close stops any active recording.
func (r *Recorder) Close() error {
	return r.Stop()
}
