// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"filterstream/internal/errs"

	"gonum.org/v1/gonum/dsp/fourier"
)

// nyquistTolerance is the relative size below which the imaginary part of the
// last half-spectrum bin counts as zero when the transform length has to be
// inferred. This is a heuristic: an odd-length signal whose last bin happens
// to be real is taken for an even-length one. Pass an explicit length to
// FromCoefficients when it is known.
const nyquistTolerance = 1e-9

// FFTSpectrum is a Spectrum of a real signal, stored as the ⌊N/2⌋+1
// non-redundant coefficients of an N-point transform.
type FFTSpectrum struct {
	Spectrum

	n          int
	sampleRate float64
	known      []float64 // prepared input when built from samples

	timeOnce   sync.Once
	timeDomain []float64
}

type options struct {
	length int
	start  int
	window WindowFunc
}

// Option configures FromSignal.
type Option func(*options)

// WithLength sets the transform length. Samples are zero-padded up to it; it
// may not be shorter than the input. Zero means the input length.
func WithLength(n int) Option {
	return func(o *options) { o.length = n }
}

// WithStart circularly shifts the input before windowing and transforming:
// prepared index i holds input index (start+i) mod L, where L is the input
// length. The shift wraps over L, not over the padded transform length, so
// zero padding always follows the whole rotated block. Negative values count
// from the end.
func WithStart(start int) Option {
	return func(o *options) { o.start = start }
}

// WithWindow applies a window to the (shifted) input before transforming.
func WithWindow(w WindowFunc) Option {
	return func(o *options) { o.window = w }
}

// FromSignal transforms samples once and keeps the half-spectrum. The shifted,
// windowed and zero-padded input is kept as the time-domain view.
func FromSignal(samples []float64, sampleRate float64, opts ...Option) (*FFTSpectrum, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: cannot transform an empty block", errs.ErrInvalidConfiguration)
	}

	o := options{window: Rectangular}
	for _, opt := range opts {
		opt(&o)
	}
	l := len(samples)
	n := o.length
	if n == 0 {
		n = l
	}
	if n < l {
		return nil, fmt.Errorf("%w: transform length %d is shorter than the %d-sample input",
			errs.ErrInvalidConfiguration, n, l)
	}

	prepared := make([]float64, n)
	start := ((o.start % l) + l) % l
	copy(prepared, samples[start:])
	copy(prepared[l-start:], samples[:start])
	if l > 1 {
		o.window.apply(prepared[:l])
	}

	plan := acquirePlan(n)
	coeffs := plan.Coefficients(nil, prepared)
	releasePlan(plan)

	return &FFTSpectrum{
		Spectrum: Spectrum{
			freqs:  binFrequencies(n, len(coeffs), sampleRate),
			values: coeffs,
		},
		n:          n,
		sampleRate: sampleRate,
		known:      prepared,
	}, nil
}

// FromCoefficients stores a half-spectrum directly; no transform runs until
// TimeDomainSignal is called. n is the transform length; zero infers it from
// the last bin (see nyquistTolerance). An explicit n must satisfy
// n/2+1 == len(coeffs).
func FromCoefficients(coeffs []complex128, sampleRate float64, n int) (*FFTSpectrum, error) {
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}
	if len(coeffs) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", errs.ErrInvalidConfiguration)
	}
	switch {
	case n == 0:
		n = InferLength(coeffs)
	case n < 0:
		return nil, fmt.Errorf("%w: transform length must be positive, got %d", errs.ErrInvalidConfiguration, n)
	case n/2+1 != len(coeffs):
		return nil, fmt.Errorf("%w: %d coefficients cannot describe a %d-point transform",
			errs.ErrDimensionMismatch, len(coeffs), n)
	}

	return &FFTSpectrum{
		Spectrum: Spectrum{
			freqs:  binFrequencies(n, len(coeffs), sampleRate),
			values: append([]complex128(nil), coeffs...),
		},
		n:          n,
		sampleRate: sampleRate,
	}, nil
}

// InferLength guesses the transform length behind a half-spectrum of M bins.
// A negligible imaginary part in the last bin marks a real Nyquist bin and an
// even length 2(M-1); anything else means an odd length 2M-1.
func InferLength(coeffs []complex128) int {
	m := len(coeffs)
	if m <= 1 {
		return m
	}
	scale := 0.0
	for _, c := range coeffs {
		scale = math.Max(scale, cmplx.Abs(c))
	}
	last := coeffs[m-1]
	if math.Abs(imag(last)) <= nyquistTolerance*math.Max(scale, minMagnitude) {
		return 2 * (m - 1)
	}
	return 2*m - 1
}

// Length returns the transform length N.
func (s *FFTSpectrum) Length() int { return s.n }

// SampleRate returns the sample rate used for the frequency axis.
func (s *FFTSpectrum) SampleRate() float64 { return s.sampleRate }

// BinWidth returns the spacing of the frequency axis in Hz.
func (s *FFTSpectrum) BinWidth() float64 { return s.sampleRate / float64(s.n) }

// TimeDomainSignal returns the N-sample signal. For spectra built from
// samples it is the prepared input; otherwise the conjugate-symmetric full
// spectrum is rebuilt from the half-spectrum and inverse transformed once.
// Do not modify the result.
func (s *FFTSpectrum) TimeDomainSignal() []float64 {
	s.timeOnce.Do(func() {
		if s.known != nil {
			s.timeDomain = s.known
			return
		}
		s.timeDomain = inverse(s.values, s.n)
	})
	return s.timeDomain
}

// inverse rebuilds the full N-point spectrum from its first N/2+1 bins and
// returns the real part of the normalized inverse transform. For even N the
// last stored bin is the Nyquist bin and has no mirror partner; for odd N it
// is mirrored like every other non-DC bin.
func inverse(half []complex128, n int) []float64 {
	full := make([]complex128, n)
	copy(full, half)
	for k := len(half); k < n; k++ {
		full[k] = cmplx.Conj(half[n-k])
	}

	seq := fourier.NewCmplxFFT(n).Sequence(nil, full)
	out := make([]float64, n)
	scale := 1 / float64(n)
	for i, v := range seq {
		out[i] = real(v) * scale
	}
	return out
}

func binFrequencies(n, bins int, sampleRate float64) []float64 {
	freqs := make([]float64, bins)
	step := sampleRate / float64(n)
	for k := range freqs {
		freqs[k] = float64(k) * step
	}
	return freqs
}

func validateSampleRate(sampleRate float64) error {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %g", errs.ErrInvalidConfiguration, sampleRate)
	}
	return nil
}

// plans caches real FFT plans per length. A plan holds work buffers, so each
// one is used by a single goroutine at a time.
var plans sync.Map // int -> *sync.Pool

func acquirePlan(n int) *fourier.FFT {
	pool, _ := plans.LoadOrStore(n, &sync.Pool{
		New: func() any { return fourier.NewFFT(n) },
	})
	return pool.(*sync.Pool).Get().(*fourier.FFT)
}

func releasePlan(plan *fourier.FFT) {
	if pool, ok := plans.Load(plan.Len()); ok {
		pool.(*sync.Pool).Put(plan)
	}
}
