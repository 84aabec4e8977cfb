// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
	"math"

	"filterstream/internal/errs"
)

// Identity passes samples through untouched. It never has an effect.
type Identity struct {
	base
}

// NewIdentity creates an identity filter.
func NewIdentity(sampleRate float64) (*Identity, error) {
	b, err := newBase("identity", sampleRate)
	if err != nil {
		return nil, err
	}
	return &Identity{base: b}, nil
}

func (f *Identity) HasEffect() bool                 { return false }
func (f *Identity) ProcessSample(x float64) float64 { return x }
func (f *Identity) Process(in Stream) Stream        { return in }

func (f *Identity) ProcessBlock(dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: block dst length %d, src length %d",
			errs.ErrDimensionMismatch, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// Gain scales every sample by a linear factor.
type Gain struct {
	base
	gain float64
}

// NewGain creates a gain stage. A gain of exactly 1 has no effect.
func NewGain(sampleRate, gain float64) (*Gain, error) {
	b, err := newBase("gain", sampleRate)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return nil, fmt.Errorf("%w: gain must be finite, got %g", errs.ErrInvalidConfiguration, gain)
	}
	return &Gain{base: b, gain: gain}, nil
}

// Gain returns the linear gain factor.
func (f *Gain) Gain() float64 { return f.gain }

// SetGain changes the gain between block calls.
func (f *Gain) SetGain(gain float64) { f.gain = gain }

func (f *Gain) HasEffect() bool                       { return f.gain != 1 }
func (f *Gain) ProcessSample(x float64) float64       { return x * f.gain }
func (f *Gain) Process(in Stream) Stream              { return processStream(f, in) }
func (f *Gain) ProcessBlock(dst, src []float64) error { return processBlock(f, dst, src) }

// Clip is a hard-clipping distortion limiting samples to [-threshold, threshold].
type Clip struct {
	base
	threshold float64
}

// NewClip creates a hard clipper. The threshold must be positive.
func NewClip(sampleRate, threshold float64) (*Clip, error) {
	b, err := newBase("clip", sampleRate)
	if err != nil {
		return nil, err
	}
	if !(threshold > 0) {
		return nil, fmt.Errorf("%w: clip threshold must be positive, got %g",
			errs.ErrInvalidConfiguration, threshold)
	}
	return &Clip{base: b, threshold: threshold}, nil
}

func (f *Clip) HasEffect() bool { return true }

func (f *Clip) ProcessSample(x float64) float64 {
	switch {
	case x > f.threshold:
		return f.threshold
	case x < -f.threshold:
		return -f.threshold
	}
	return x
}

func (f *Clip) Process(in Stream) Stream              { return processStream(f, in) }
func (f *Clip) ProcessBlock(dst, src []float64) error { return processBlock(f, dst, src) }

// Func wraps an arbitrary per-sample function. It is assumed to have an effect.
type Func struct {
	base
	fn func(float64) float64
}

// NewFunc creates a filter from fn.
func NewFunc(name string, sampleRate float64, fn func(float64) float64) (*Func, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: %s: nil sample function", errs.ErrInvalidConfiguration, name)
	}
	b, err := newBase(name, sampleRate)
	if err != nil {
		return nil, err
	}
	return &Func{base: b, fn: fn}, nil
}

func (f *Func) HasEffect() bool                       { return true }
func (f *Func) ProcessSample(x float64) float64       { return f.fn(x) }
func (f *Func) Process(in Stream) Stream              { return processStream(f, in) }
func (f *Func) ProcessBlock(dst, src []float64) error { return processBlock(f, dst, src) }

// Compile-time checks for interface implementations.
var (
	_ StreamFilter = (*Identity)(nil)
	_ BlockFilter  = (*Identity)(nil)
	_ StreamFilter = (*Gain)(nil)
	_ BlockFilter  = (*Gain)(nil)
	_ StreamFilter = (*Clip)(nil)
	_ BlockFilter  = (*Clip)(nil)
	_ StreamFilter = (*Func)(nil)
	_ BlockFilter  = (*Func)(nil)
)
