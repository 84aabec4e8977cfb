// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sort"

	"filterstream/internal/spectrum"

	"gonum.org/v1/gonum/floats"
)

// Band defines the name and frequency range [Low, High) of an energy band.
type Band struct {
	Name string  `json:"name"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DefaultBands returns the usual six listening bands, the last one open up
// to the Nyquist frequency.
func DefaultBands(sampleRate float64) []Band {
	return []Band{
		{Name: "sub", Low: 20, High: 60},
		{Name: "bass", Low: 60, High: 250},
		{Name: "lowMid", Low: 250, High: 500},
		{Name: "mid", Low: 500, High: 2000},
		{Name: "highMid", Low: 2000, High: 4000},
		{Name: "treble", Low: 4000, High: sampleRate / 2},
	}
}

// BandEnergy returns the mean squared magnitude of the bins inside each band.
// Bands that contain no bin report zero.
func BandEnergy(s *spectrum.Spectrum, bands []Band) map[string]float64 {
	freqs := s.Frequencies()
	mag := s.Magnitude()
	out := make(map[string]float64, len(bands))
	for _, b := range bands {
		lo := sort.SearchFloat64s(freqs, b.Low)
		hi := sort.SearchFloat64s(freqs, b.High)
		if hi <= lo {
			out[b.Name] = 0
			continue
		}
		m := mag[lo:hi]
		out[b.Name] = floats.Dot(m, m) / float64(len(m))
	}
	return out
}

// Peak returns the frequency and level (dB) of the strongest non-DC bin.
// A single-bin spectrum reports its DC bin.
func Peak(s *spectrum.Spectrum) (hz, db float64) {
	mag := s.Magnitude()
	if len(mag) == 0 {
		return 0, math.Inf(-1)
	}
	first := 0
	if len(mag) > 1 {
		first = 1
	}
	i := first + floats.MaxIdx(mag[first:])
	return s.Frequencies()[i], s.MagnitudeDB()[i]
}

// RMS returns the root mean square of samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}
