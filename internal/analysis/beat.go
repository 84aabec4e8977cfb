// SPDX-License-Identifier: MIT
package analysis

// OnsetDetector flags blocks whose energy jumps above the previous block's.
// It is a simplified detector based on overall RMS, with no frequency
// weighting.
type OnsetDetector struct {
	threshold      float64 // Minimum RMS for a block to count.
	minEnergyRatio float64 // Required increase over the previous block.
	lastEnergy     float64
}

// NewOnsetDetector returns a detector with the given absolute threshold and
// minimum energy ratio.
func NewOnsetDetector(threshold, minEnergyRatio float64) *OnsetDetector {
	return &OnsetDetector{threshold: threshold, minEnergyRatio: minEnergyRatio}
}

// Detect reports whether a block with the given RMS is an onset and
// remembers it for the next call.
func (d *OnsetDetector) Detect(rms float64) bool {
	onset := rms > d.threshold && (d.lastEnergy == 0 || rms/d.lastEnergy > d.minEnergyRatio)
	d.lastEnergy = rms
	return onset
}

// Reset forgets the previous block.
func (d *OnsetDetector) Reset() { d.lastEnergy = 0 }
