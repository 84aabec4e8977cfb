// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"
	"os"

	"filterstream/internal/errs"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavPCM is the WAVE format tag for integer PCM.
const wavPCM = 1

// WAV decodes integer PCM WAVE files.
type WAV struct {
	file     *os.File
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	offset   int // Subtracted before scaling; 8-bit PCM is unsigned.
	scale    float64
}

// OpenWAV opens and validates a PCM WAVE file.
func OpenWAV(path string) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("open wav %s: not a valid WAVE file", path)
	}
	if dec.WavAudioFormat != wavPCM {
		f.Close()
		return nil, fmt.Errorf("open wav %s: unsupported format tag %d", path, dec.WavAudioFormat)
	}
	var offset int
	switch dec.BitDepth {
	case 8:
		offset = 128
	case 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: wav %s has unsupported bit depth %d",
			errs.ErrInvalidConfiguration, path, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("open wav %s: %w", path, err)
	}

	return &WAV{
		file:     f,
		dec:      dec,
		buf:      &audio.IntBuffer{},
		channels: int(dec.NumChans),
		offset:   offset,
		scale:    1 / float64(int64(1)<<(dec.BitDepth-1)),
	}, nil
}

func (w *WAV) SampleRate() float64 { return float64(w.dec.SampleRate) }

// Channels returns the channel count of the file.
func (w *WAV) Channels() int { return w.channels }

// BitDepth returns the sample width of the file.
func (w *WAV) BitDepth() int { return int(w.dec.BitDepth) }

func (w *WAV) ReadBlock(dst []float64) (int, error) {
	want := len(dst) * w.channels
	if cap(w.buf.Data) < want {
		w.buf.Data = make([]int, want)
	}
	w.buf.Data = w.buf.Data[:want]

	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil {
		return 0, fmt.Errorf("read wav: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	data := w.buf.Data[:n-n%w.channels]
	if w.offset != 0 {
		for i := range data {
			data[i] -= w.offset
		}
	}
	return downmix(dst, data, w.channels, w.scale), nil
}

func (w *WAV) Close() error { return w.file.Close() }

var _ Source = (*WAV)(nil)
