// SPDX-License-Identifier: MIT
/*
Package stream adapts a filter chain built for unbounded sequences to the
block-oriented request/response shape of a real-time audio callback.

The chain is composed once over a block source whose cursor endlessly replays
the most recently installed block. Each output call advances that single
cursor by exactly one block, so the filters observe one continuous signal and
never see block boundaries.

Thread Safety:
  - Every operation takes the streamer's mutex
  - StreamBlock holds it across installation and pull, making one
    input-then-output cycle atomic
  - No goroutines are created; work runs on the caller's goroutine
*/
package stream

import (
	"fmt"
	"sync"

	"filterstream/internal/errs"
	"filterstream/internal/filter"
)

// Streamer exclusively owns a filter chain and the cursor over its output.
type Streamer struct {
	mu     sync.Mutex
	chain  *filter.Chain
	source *blockSource
	cursor filter.Stream
	blocks uint64
}

// NewStreamer composes chain over a fresh block source. The chain must be
// streamable. Bypass decisions (HasEffect) are taken here and again on
// Rebuild.
func NewStreamer(chain *filter.Chain) (*Streamer, error) {
	if chain == nil {
		return nil, fmt.Errorf("%w: streamer needs a filter chain", errs.ErrInvalidConfiguration)
	}
	s := &Streamer{
		chain:  chain,
		source: &blockSource{},
	}
	if err := s.compose(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Streamer) compose() error {
	cursor, err := s.chain.Process(s.source)
	if err != nil {
		return fmt.Errorf("streamer: %w", err)
	}
	s.cursor = cursor
	return nil
}

// Rebuild recomposes the chain over the same block source, picking up
// filters whose HasEffect changed since construction. Filter history and the
// source position are preserved.
func (s *Streamer) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose()
}

// Chain returns the chain the streamer owns. Mutating filters is allowed only
// between block calls.
func (s *Streamer) Chain() *filter.Chain {
	return s.chain
}

// InputBlock installs samples as the current block. The samples are copied;
// the caller may reuse its slice immediately. The cursor does not move.
func (s *Streamer) InputBlock(samples []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputBlock(samples)
}

func (s *Streamer) inputBlock(samples []float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: input block is empty", errs.ErrInvalidConfiguration)
	}
	s.source.install(samples)
	return nil
}

// OutputBlock pulls exactly one current block's worth of samples from the
// filtered stream and returns them in production order.
func (s *Streamer) OutputBlock() ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.source.installed() {
		return nil, s.uninitialized()
	}
	out := make([]float64, s.source.current())
	s.pull(out)
	return out, nil
}

// OutputBlockInto is OutputBlock writing into dst, which must have exactly
// the current block length. It does not allocate.
func (s *Streamer) OutputBlockInto(dst []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputBlockInto(dst)
}

func (s *Streamer) outputBlockInto(dst []float64) error {
	if !s.source.installed() {
		return s.uninitialized()
	}
	if n := s.source.current(); len(dst) != n {
		return fmt.Errorf("%w: output length %d, block length %d", errs.ErrDimensionMismatch, len(dst), n)
	}
	s.pull(dst)
	return nil
}

// StreamBlock installs samples and pulls the matching output block as one
// atomic step.
func (s *Streamer) StreamBlock(samples []float64) ([]float64, error) {
	out := make([]float64, len(samples))
	if err := s.StreamBlockInto(out, samples); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamBlockInto is StreamBlock writing into dst, which must have the same
// length as samples. Nothing is installed when the lengths disagree. dst and
// samples may alias.
func (s *Streamer) StreamBlockInto(dst, samples []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(dst) != len(samples) {
		return fmt.Errorf("%w: output length %d, block length %d", errs.ErrDimensionMismatch, len(dst), len(samples))
	}
	if err := s.inputBlock(samples); err != nil {
		return err
	}
	return s.outputBlockInto(dst)
}

// BlockSize returns the length of the current block, 0 before any input.
func (s *Streamer) BlockSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.current()
}

// Blocks returns how many output blocks have been produced.
func (s *Streamer) Blocks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks
}

// Reset clears filter history and moves the cursor back to the start of the
// installed block, as if the stream began anew.
func (s *Streamer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain.Reset()
	s.source.restart()
}

func (s *Streamer) pull(dst []float64) {
	for i := range dst {
		dst[i] = s.cursor.Next()
	}
	s.blocks++
}

func (s *Streamer) uninitialized() error {
	return fmt.Errorf("%w: no block was installed before output was requested", errs.ErrUninitializedState)
}
