// SPDX-License-Identifier: MIT
/*
Package spectrum represents blocks in the frequency domain.

A Spectrum pairs a frequency axis with immutable complex coefficients. Derived
views (magnitude, phase, unwrapped phase, group delay) are computed on first
access and cached for the lifetime of the value; this is valid because the
source values never change after construction. Views are shared slices and
must not be modified by callers.

FFTSpectrum adds the time-domain side: it is built either from samples (the
forward transform runs once, inside the constructor) or from half-spectrum
coefficients (no transform runs until the time-domain view is requested).

All views are safe for concurrent readers.
*/
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"filterstream/internal/errs"
)

// minMagnitude floors magnitudes before conversion to decibels.
const minMagnitude = 1e-12

// Spectrum is a frequency axis with matching complex coefficients.
type Spectrum struct {
	freqs  []float64
	values []complex128

	magOnce     sync.Once
	magnitude   []float64
	dbOnce      sync.Once
	magnitudeDB []float64
	phaseOnce   sync.Once
	phase       []float64
	unwrapOnce  sync.Once
	unwrapped   []float64
	delayOnce   sync.Once
	groupDelay  []float64
}

// New builds a spectrum from a frequency axis (Hz) and coefficients. Both are
// copied. The lengths must match.
func New(freqs []float64, values []complex128) (*Spectrum, error) {
	if len(freqs) != len(values) {
		return nil, fmt.Errorf("%w: frequency axis has %d points, values have %d",
			errs.ErrDimensionMismatch, len(freqs), len(values))
	}
	return &Spectrum{
		freqs:  append([]float64(nil), freqs...),
		values: append([]complex128(nil), values...),
	}, nil
}

// Len returns the number of bins.
func (s *Spectrum) Len() int { return len(s.values) }

// Frequencies returns the frequency axis in Hz. Do not modify it.
func (s *Spectrum) Frequencies() []float64 { return s.freqs }

// Values returns the complex coefficients. Do not modify them.
func (s *Spectrum) Values() []complex128 { return s.values }

// Magnitude returns |X(f)| per bin.
func (s *Spectrum) Magnitude() []float64 {
	s.magOnce.Do(func() {
		s.magnitude = make([]float64, len(s.values))
		for i, v := range s.values {
			s.magnitude[i] = cmplx.Abs(v)
		}
	})
	return s.magnitude
}

// MagnitudeDB returns 20·log10 |X(f)| per bin, floored at -240 dB.
func (s *Spectrum) MagnitudeDB() []float64 {
	s.dbOnce.Do(func() {
		mag := s.Magnitude()
		s.magnitudeDB = make([]float64, len(mag))
		for i, m := range mag {
			s.magnitudeDB[i] = 20 * math.Log10(math.Max(m, minMagnitude))
		}
	})
	return s.magnitudeDB
}

// Phase returns the wrapped phase per bin in radians, in (-π, π].
func (s *Spectrum) Phase() []float64 {
	s.phaseOnce.Do(func() {
		s.phase = make([]float64, len(s.values))
		for i, v := range s.values {
			s.phase[i] = cmplx.Phase(v)
		}
	})
	return s.phase
}

// UnwrappedPhase returns the phase with 2π jumps between adjacent bins
// removed.
func (s *Spectrum) UnwrappedPhase() []float64 {
	s.unwrapOnce.Do(func() {
		s.unwrapped = unwrap(s.Phase())
	})
	return s.unwrapped
}

// GroupDelay returns -dφ/dω in seconds, where φ is the unwrapped phase and
// ω = 2πf. Interior bins use central differences, the edges one-sided ones.
// Spectra with fewer than two bins have zero group delay.
func (s *Spectrum) GroupDelay() []float64 {
	s.delayOnce.Do(func() {
		s.groupDelay = groupDelay(s.freqs, s.UnwrappedPhase())
	})
	return s.groupDelay
}

func unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	offset := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		switch {
		case d > math.Pi:
			offset -= 2 * math.Pi
		case d < -math.Pi:
			offset += 2 * math.Pi
		}
		out[i] = phase[i] + offset
	}
	return out
}

func groupDelay(freqs, unwrapped []float64) []float64 {
	n := len(unwrapped)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	for i := range out {
		lo, hi := max(i-1, 0), min(i+1, n-1)
		dw := 2 * math.Pi * (freqs[hi] - freqs[lo])
		if dw == 0 {
			continue
		}
		out[i] = -(unwrapped[hi] - unwrapped[lo]) / dw
	}
	return out
}
