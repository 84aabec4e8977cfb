// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// The decoder always produces 16-bit little-endian stereo.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 2 * mp3Channels
)

// MP3 decodes MPEG-1/2 Layer III files.
type MP3 struct {
	file *os.File
	dec  *mp3.Decoder
	raw  []byte
	pcm  []int16
}

// OpenMP3 opens an MP3 file and reads its first frame header.
func OpenMP3(path string) (*MP3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open mp3 %s: %w", path, err)
	}
	return &MP3{file: f, dec: dec}, nil
}

func (m *MP3) SampleRate() float64 { return float64(m.dec.SampleRate()) }

func (m *MP3) ReadBlock(dst []float64) (int, error) {
	want := len(dst) * mp3BytesPerFrame
	if cap(m.raw) < want {
		m.raw = make([]byte, want)
		m.pcm = make([]int16, len(dst)*mp3Channels)
	}
	raw := m.raw[:want]

	n, err := io.ReadFull(m.dec, raw)
	switch {
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
	case err != nil:
		return 0, fmt.Errorf("read mp3: %w", err)
	}

	samples := n / 2
	samples -= samples % mp3Channels
	pcm := m.pcm[:samples]
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	frames := downmix(dst, pcm, mp3Channels, 1.0/32768)
	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

func (m *MP3) Close() error { return m.file.Close() }

var _ Source = (*MP3)(nil)
