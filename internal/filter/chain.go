// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"

	"filterstream/internal/errs"
)

// Chain composes filters in order. Each filter consumes what its predecessor
// produces: an unbounded stream stays unbounded, a finite block keeps its
// length. Filters without effect are skipped entirely.
type Chain struct {
	sampleRate float64
	filters    []Filter
}

// NewChain validates and builds a chain. Every filter must be a StreamFilter
// or a BlockFilter and run at the chain's sample rate. An empty chain is an
// identity transform.
func NewChain(sampleRate float64, filters ...Filter) (*Chain, error) {
	if _, err := newBase("chain", sampleRate); err != nil {
		return nil, err
	}
	for i, f := range filters {
		if f == nil {
			return nil, fmt.Errorf("%w: chain position %d is nil", errs.ErrInvalidConfiguration, i)
		}
		_, isStream := f.(StreamFilter)
		_, isBlock := f.(BlockFilter)
		if !isStream && !isBlock {
			return nil, fmt.Errorf("%w: chain position %d (%s) has no operation shape",
				errs.ErrInvalidConfiguration, i, f.Name())
		}
		if f.SampleRate() != sampleRate {
			return nil, fmt.Errorf("%w: chain position %d (%s) runs at %g Hz, chain at %g Hz",
				errs.ErrInvalidConfiguration, i, f.Name(), f.SampleRate(), sampleRate)
		}
	}
	return &Chain{
		sampleRate: sampleRate,
		filters:    append([]Filter(nil), filters...),
	}, nil
}

// SampleRate returns the chain's sample rate.
func (c *Chain) SampleRate() float64 { return c.sampleRate }

// Len returns the number of filters, including bypassed ones.
func (c *Chain) Len() int { return len(c.filters) }

// Filters returns a copy of the filter list.
func (c *Chain) Filters() []Filter {
	return append([]Filter(nil), c.filters...)
}

// HasEffect reports whether any filter in the chain has an effect.
func (c *Chain) HasEffect() bool {
	for _, f := range c.filters {
		if f.HasEffect() {
			return true
		}
	}
	return false
}

// Streamable reports whether every effective filter can process an unbounded
// stream.
func (c *Chain) Streamable() bool {
	for _, f := range c.filters {
		if !f.HasEffect() {
			continue
		}
		if _, ok := f.(StreamFilter); !ok {
			return false
		}
	}
	return true
}

// Process composes the effective filters over in. A chain without effect
// returns in itself.
func (c *Chain) Process(in Stream) (Stream, error) {
	out := in
	for i, f := range c.filters {
		if !f.HasEffect() {
			continue
		}
		sf, ok := f.(StreamFilter)
		if !ok {
			return nil, fmt.Errorf("%w: chain position %d (%s) cannot process an unbounded stream",
				errs.ErrInvalidConfiguration, i, f.Name())
		}
		out = sf.Process(out)
	}
	return out, nil
}

// ProcessBlock runs the chain over a finite block. dst and src may alias.
func (c *Chain) ProcessBlock(dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: block dst length %d, src length %d",
			errs.ErrDimensionMismatch, len(dst), len(src))
	}
	copy(dst, src)
	for _, f := range c.filters {
		if !f.HasEffect() {
			continue
		}
		switch t := f.(type) {
		case SampleProcessor:
			for i, x := range dst {
				dst[i] = t.ProcessSample(x)
			}
		case BlockFilter:
			if err := t.ProcessBlock(dst, dst); err != nil {
				return fmt.Errorf("filter %s: %w", f.Name(), err)
			}
		case StreamFilter:
			out := t.Process(&blockStream{block: dst})
			for i := range dst {
				dst[i] = out.Next()
			}
		}
	}
	return nil
}

// Reset clears the history of every filter that carries any.
func (c *Chain) Reset() {
	for _, f := range c.filters {
		if r, ok := f.(Resetter); ok {
			r.Reset()
		}
	}
}
