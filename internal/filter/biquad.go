// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
	"math"

	"filterstream/internal/errs"
)

// Coefficients are normalized biquad coefficients (a0 == 1).
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// IsIdentity reports whether the section passes samples through unchanged.
func (c Coefficients) IsIdentity() bool {
	return c.B0 == 1 && c.B1 == 0 && c.B2 == 0 && c.A1 == 0 && c.A2 == 0
}

// Biquad is a second-order IIR section in transposed direct form II. Its two
// state variables carry history across block boundaries, so a streamer feeding
// it sees one continuous signal.
type Biquad struct {
	base
	coeffs Coefficients
	z1, z2 float64
}

// NewBiquad creates a section from caller-supplied coefficients. No design
// happens here.
func NewBiquad(sampleRate float64, c Coefficients) (*Biquad, error) {
	b, err := newBase("biquad", sampleRate)
	if err != nil {
		return nil, err
	}
	for _, v := range []float64{c.B0, c.B1, c.B2, c.A1, c.A2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: biquad coefficients must be finite: %+v",
				errs.ErrInvalidConfiguration, c)
		}
	}
	return &Biquad{base: b, coeffs: c}, nil
}

// Coefficients returns the current coefficients.
func (f *Biquad) Coefficients() Coefficients { return f.coeffs }

// SetCoefficients swaps coefficients between block calls. History is kept.
func (f *Biquad) SetCoefficients(c Coefficients) { f.coeffs = c }

func (f *Biquad) HasEffect() bool { return !f.coeffs.IsIdentity() }

func (f *Biquad) ProcessSample(x float64) float64 {
	c := &f.coeffs
	y := c.B0*x + f.z1
	f.z1 = c.B1*x - c.A1*y + f.z2
	f.z2 = c.B2*x - c.A2*y
	return y
}

// Reset clears the filter history.
func (f *Biquad) Reset() {
	f.z1, f.z2 = 0, 0
}

func (f *Biquad) Process(in Stream) Stream              { return processStream(f, in) }
func (f *Biquad) ProcessBlock(dst, src []float64) error { return processBlock(f, dst, src) }

var (
	_ StreamFilter = (*Biquad)(nil)
	_ BlockFilter  = (*Biquad)(nil)
	_ Resetter     = (*Biquad)(nil)
)
