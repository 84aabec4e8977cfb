// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filterstream/internal/errs"
	"filterstream/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes mono float samples to a PCM WAV file. Write may be called
// from the audio callback while Close is called from another goroutine.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer // Reusable buffer for format conversion
	maxInt  float64
	samples int64
	closed  bool
}

// NewRecorder creates path and prepares a WAV encoder. chunk sizes the
// conversion buffer; larger writes grow it once.
func NewRecorder(path string, sampleRate float64, bitDepth, chunk int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", errs.ErrInvalidConfiguration, bitDepth)
	}
	if chunk <= 0 {
		chunk = 1
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	r := &Recorder{
		file: file,
		enc:  wav.NewEncoder(file, int(sampleRate), bitDepth, 1, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  int(sampleRate),
			},
			Data:           make([]int, chunk),
			SourceBitDepth: bitDepth,
		},
		maxInt: math.Exp2(float64(bitDepth-1)) - 1,
	}
	log.Infof("Audio: Recording to %s (%d-bit, %.0f Hz)", path, bitDepth, sampleRate)
	return r, nil
}

// Write converts samples to integers, clamping to [-1, 1], and appends them.
func (r *Recorder) Write(samples []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return os.ErrClosed
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		s = max(-1, min(1, s))
		r.buf.Data[i] = int(math.Round(s * r.maxInt))
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.samples += int64(len(samples))
	return nil
}

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Close finalizes the WAV header and closes the file. It is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.enc.Close()
	fileErr := r.file.Close()
	log.Debugf("Audio: Recording %s closed after %d samples", r.file.Name(), r.samples)
	return errors.Join(encErr, fileErr)
}

// recordingName returns a timestamped file name inside dir.
func recordingName(dir string, now time.Time) string {
	return filepath.Join(dir, "recording_"+now.Format("20060102_150405")+".wav")
}

// StartRecording begins writing the filtered output to path. An empty path
// picks a timestamped name in the configured output directory.
func (e *Engine) StartRecording(path string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	if path == "" {
		dir := e.config.Recording.OutputDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
		path = recordingName(dir, time.Now())
	}

	rec, err := NewRecorder(path, e.sampleRate, e.config.Recording.BitDepth, e.frames)
	if err != nil {
		return err
	}
	e.recorder.Store(rec)
	return nil
}

// StopRecording finalizes the current recording. It is a no-op when not
// recording.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()

	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	return rec.Close()
}

// IsRecording reports whether filtered output is being written to disk.
func (e *Engine) IsRecording() bool { return e.recorder.Load() != nil }
