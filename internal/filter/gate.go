// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
	"math"

	"filterstream/internal/errs"
)

// DefaultGateRelease is the envelope release time used when none is given.
const DefaultGateRelease = 0.05 // seconds

// Gate is a noise gate. A peak envelope follower tracks the input level and
// the gate mutes samples while the envelope sits below the threshold. The
// envelope rises instantly and decays exponentially, so a loud onset opens
// the gate on the same sample and quiet tails close it after the release.
type Gate struct {
	base
	threshold float64
	release   float64 // per-sample envelope decay factor
	envelope  float64
}

// NewGate creates a gate with the threshold as an absolute level in [0, 1]
// and the release time in seconds. A threshold of 0 leaves the gate always
// open and without effect.
func NewGate(sampleRate, threshold, releaseSeconds float64) (*Gate, error) {
	b, err := newBase("gate", sampleRate)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: gate threshold must be in [0, 1], got %g",
			errs.ErrInvalidConfiguration, threshold)
	}
	if releaseSeconds == 0 {
		releaseSeconds = DefaultGateRelease
	}
	if !(releaseSeconds > 0) || math.IsInf(releaseSeconds, 0) {
		return nil, fmt.Errorf("%w: gate release must be positive, got %g",
			errs.ErrInvalidConfiguration, releaseSeconds)
	}
	return &Gate{
		base:      b,
		threshold: threshold,
		release:   math.Exp(-1 / (releaseSeconds * sampleRate)),
	}, nil
}

// Threshold returns the gate threshold.
func (f *Gate) Threshold() float64 { return f.threshold }

// Open reports whether the last processed sample passed the gate.
func (f *Gate) Open() bool { return f.envelope >= f.threshold }

func (f *Gate) HasEffect() bool { return f.threshold > 0 }

func (f *Gate) ProcessSample(x float64) float64 {
	f.envelope = math.Max(math.Abs(x), f.envelope*f.release)
	if f.envelope < f.threshold {
		return 0
	}
	return x
}

func (f *Gate) Reset() { f.envelope = 0 }

func (f *Gate) Process(in Stream) Stream              { return processStream(f, in) }
func (f *Gate) ProcessBlock(dst, src []float64) error { return processBlock(f, dst, src) }

var (
	_ StreamFilter = (*Gate)(nil)
	_ BlockFilter  = (*Gate)(nil)
	_ Resetter     = (*Gate)(nil)
)
