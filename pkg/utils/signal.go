// SPDX-License-Identifier: MIT

// Package utils generates deterministic test signals in the [-1, 1] float
// range the engine works in.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// Sine returns n samples of a sine at frequency Hz with peak amplitude amp.
func Sine(n int, sampleRate, frequency, amp float64) []float64 {
	buffer := make([]float64, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amp * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// Harmonic returns n samples of a fundamental plus its second and third
// harmonics, weighted 0.5, 0.3 and 0.2 and scaled by amp.
func Harmonic(n int, sampleRate, fundamental, amp float64) []float64 {
	buffer := make([]float64, n)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amp * (math.Sin(2*math.Pi*fundamental*t)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*t)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*t)*0.2)
	}
	return buffer
}

// Impulse returns n samples that are zero except for amp at index at.
func Impulse(n, at int, amp float64) []float64 {
	buffer := make([]float64, n)
	if at >= 0 && at < n {
		buffer[at] = amp
	}
	return buffer
}

// Generate builds a named waveform: "sine", "harmonic" or "impulse".
func Generate(kind string, n int, sampleRate, frequency, amp float64) ([]float64, error) {
	switch strings.ToLower(kind) {
	case "sine":
		return Sine(n, sampleRate, frequency, amp), nil
	case "harmonic":
		return Harmonic(n, sampleRate, frequency, amp), nil
	case "impulse":
		return Impulse(n, 0, amp), nil
	default:
		return nil, fmt.Errorf("unknown waveform %q", kind)
	}
}
