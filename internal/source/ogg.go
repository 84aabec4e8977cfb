// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// Ogg decodes Ogg Vorbis files.
type Ogg struct {
	file *os.File
	r    *oggvorbis.Reader
	buf  []float32
}

// OpenOgg opens an Ogg Vorbis file and parses its headers.
func OpenOgg(path string) (*Ogg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ogg: %w", err)
	}
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open ogg %s: %w", path, err)
	}
	return &Ogg{file: f, r: r}, nil
}

func (o *Ogg) SampleRate() float64 { return float64(o.r.SampleRate()) }

// Channels returns the channel count of the stream.
func (o *Ogg) Channels() int { return o.r.Channels() }

func (o *Ogg) ReadBlock(dst []float64) (int, error) {
	ch := o.r.Channels()
	want := len(dst) * ch
	if cap(o.buf) < want {
		o.buf = make([]float32, want)
	}
	buf := o.buf[:want]

	// Read returns at most one packet per call.
	total := 0
	for total < want {
		n, err := o.r.Read(buf[total:])
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read ogg: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if total == 0 {
		return 0, io.EOF
	}
	return downmix(dst, buf[:total], ch, 1), nil
}

func (o *Ogg) Close() error { return o.file.Close() }

var _ Source = (*Ogg)(nil)
