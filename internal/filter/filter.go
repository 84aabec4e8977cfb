// SPDX-License-Identifier: MIT
/*
Package filter defines the uniform transform interface used by the streaming
pipeline and a small catalogue of per-sample filters.

A filter has one of two operation shapes, picked when it is constructed:

  - StreamFilter transforms an unbounded Stream sample-for-sample. Pulling one
    sample from the output pulls exactly one sample from the input, in order.
  - BlockFilter transforms a bounded block and preserves its length exactly.

Both shapes share the Filter capability, which exposes the sample rate and
whether the filter has any effect at all. Callers bypass filters whose
HasEffect reports false.

Filters with internal state (IIR history) belong to exactly one streamer and
must not be shared between streamers.
*/
package filter

import (
	"fmt"
	"math"

	"filterstream/internal/errs"
)

// Stream is an unbounded sequence of samples pulled one at a time. Next never
// signals exhaustion.
type Stream interface {
	Next() float64
}

// StreamFunc adapts an ordinary function to the Stream interface.
type StreamFunc func() float64

// Next returns the next sample.
func (f StreamFunc) Next() float64 { return f() }

// Filter is the capability every filter shares.
type Filter interface {
	Name() string
	SampleRate() float64
	// HasEffect reports false only when the filter is provably identity.
	HasEffect() bool
}

// StreamFilter is the unbounded-stream operation shape.
type StreamFilter interface {
	Filter
	Process(in Stream) Stream
}

// BlockFilter is the bounded-length operation shape. Implementations must
// accept dst and src aliasing the same slice.
type BlockFilter interface {
	Filter
	ProcessBlock(dst, src []float64) error
}

// SampleProcessor is implemented by filters that transform one sample at a
// time. The chain uses it to avoid building a stream for finite blocks.
type SampleProcessor interface {
	ProcessSample(x float64) float64
}

// Resetter is implemented by filters that carry history.
type Resetter interface {
	Reset()
}

// base carries the attributes common to all built-in filters.
type base struct {
	name       string
	sampleRate float64
}

func newBase(name string, sampleRate float64) (base, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return base{}, fmt.Errorf("%w: %s: sample rate must be positive, got %g",
			errs.ErrInvalidConfiguration, name, sampleRate)
	}
	return base{name: name, sampleRate: sampleRate}, nil
}

// Name returns the filter name.
func (b base) Name() string { return b.name }

// SampleRate returns the sample rate the filter was built for.
func (b base) SampleRate() float64 { return b.sampleRate }

// processStream lifts a per-sample transform onto an unbounded stream.
func processStream(p SampleProcessor, in Stream) Stream {
	return StreamFunc(func() float64 {
		return p.ProcessSample(in.Next())
	})
}

// processBlock applies a per-sample transform to a finite block.
func processBlock(p SampleProcessor, dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: block dst length %d, src length %d",
			errs.ErrDimensionMismatch, len(dst), len(src))
	}
	for i, x := range src {
		dst[i] = p.ProcessSample(x)
	}
	return nil
}

// blockStream replays a finite block once. Pulling past the end yields zeros;
// the chain never does that because stream filters are one-in one-out.
type blockStream struct {
	block []float64
	pos   int
}

func (s *blockStream) Next() float64 {
	if s.pos >= len(s.block) {
		return 0
	}
	x := s.block[s.pos]
	s.pos++
	return x
}
