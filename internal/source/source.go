// SPDX-License-Identifier: MIT

// Package source reads audio files as mono float64 blocks, the same shape
// the live engine receives from the driver. Multi-channel input is averaged
// down to one channel.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"filterstream/internal/errs"
)

// Source yields mono samples in blocks.
type Source interface {
	// SampleRate returns the native rate of the material in Hz.
	SampleRate() float64
	// ReadBlock fills dst from the start and returns the number of samples
	// written. The last block of a file may be short. Once the material is
	// exhausted ReadBlock returns 0 and io.EOF.
	ReadBlock(dst []float64) (int, error)
	Close() error
}

// Open picks a decoder by file extension (.wav, .mp3, .ogg).
func Open(path string) (Source, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".mp3":
		return OpenMP3(path)
	case ".ogg", ".oga":
		return OpenOgg(path)
	default:
		return nil, fmt.Errorf("%w: unsupported audio file extension %q", errs.ErrInvalidConfiguration, ext)
	}
}

// downmix averages interleaved frames into dst and returns the frame count.
func downmix[T int | float32 | int16](dst []float64, interleaved []T, channels int, scale float64) int {
	frames := len(interleaved) / channels
	for i := range frames {
		var sum float64
		for c := range channels {
			sum += float64(interleaved[i*channels+c])
		}
		dst[i] = sum * scale / float64(channels)
	}
	return frames
}

// Memory is a Source over samples held in memory.
type Memory struct {
	samples    []float64
	sampleRate float64
	pos        int
}

// NewMemory wraps samples. They are not copied.
func NewMemory(samples []float64, sampleRate float64) *Memory {
	return &Memory{samples: samples, sampleRate: sampleRate}
}

func (m *Memory) SampleRate() float64 { return m.sampleRate }

func (m *Memory) ReadBlock(dst []float64) (int, error) {
	if m.pos >= len(m.samples) {
		return 0, io.EOF
	}
	n := copy(dst, m.samples[m.pos:])
	m.pos += n
	return n, nil
}

func (m *Memory) Close() error { return nil }

var _ Source = (*Memory)(nil)
