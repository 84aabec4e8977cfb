// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
	"math"
	"strings"

	"filterstream/internal/errs"
)

// Spec describes one chain position as it appears in configuration files.
type Spec struct {
	Type      string  `yaml:"type"`
	GainDB    float64 `yaml:"gain_db,omitempty"`   // gain: level change in dB.
	Threshold float64 `yaml:"threshold,omitempty"` // clip: absolute limit; gate: open level.
	Release   float64 `yaml:"release,omitempty"`   // gate: envelope release in seconds.
	B0        float64 `yaml:"b0,omitempty"`        // biquad: normalized coefficients.
	B1        float64 `yaml:"b1,omitempty"`
	B2        float64 `yaml:"b2,omitempty"`
	A1        float64 `yaml:"a1,omitempty"`
	A2        float64 `yaml:"a2,omitempty"`
}

// Build constructs the filter a Spec names.
func Build(spec Spec, sampleRate float64) (Filter, error) {
	switch strings.ToLower(spec.Type) {
	case "identity", "bypass":
		return NewIdentity(sampleRate)
	case "gain":
		return NewGain(sampleRate, math.Pow(10, spec.GainDB/20))
	case "clip", "distortion":
		return NewClip(sampleRate, spec.Threshold)
	case "gate", "noise_gate":
		return NewGate(sampleRate, spec.Threshold, spec.Release)
	case "biquad":
		return NewBiquad(sampleRate, Coefficients{
			B0: spec.B0, B1: spec.B1, B2: spec.B2,
			A1: spec.A1, A2: spec.A2,
		})
	default:
		return nil, fmt.Errorf("%w: unknown filter type %q", errs.ErrInvalidConfiguration, spec.Type)
	}
}

// BuildChain constructs a chain from specs in order.
func BuildChain(specs []Spec, sampleRate float64) (*Chain, error) {
	filters := make([]Filter, 0, len(specs))
	for i, spec := range specs {
		f, err := Build(spec, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		filters = append(filters, f)
	}
	return NewChain(sampleRate, filters...)
}
