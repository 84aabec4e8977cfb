// SPDX-License-Identifier: MIT
package analysis

// BlockProcessor consumes completed analysis blocks of little-endian float32
// samples. ProcessBlock runs on the audio writer's goroutine and must not
// block.
type BlockProcessor interface {
	ProcessBlock(block []byte)
}

// ClosableProcessor combines BlockProcessor with a Close method for resource cleanup.
type ClosableProcessor interface {
	BlockProcessor
	Close() error
}

// SpectrumProvider exposes the most recent magnitude spectrum. It decouples
// consumers such as the UDP publisher from the concrete analyzer.
type SpectrumProvider interface {
	GetMagnitudes() []float64                // Thread-safe copy of the latest magnitudes.
	GetMagnitudesInto(dst []float64) error   // Allocation-free variant of GetMagnitudes.
	GetFrequencyForBin(binIndex int) float64 // Center frequency (Hz) of a bin.
	GetFFTSize() int                         // Transform length.
	GetSampleRate() float64                  // Sample rate of the analyzed signal.
}
