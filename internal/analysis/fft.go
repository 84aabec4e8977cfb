// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"filterstream/internal/buffer"
	"filterstream/internal/errs"
	"filterstream/internal/log"
	"filterstream/internal/spectrum"
	"filterstream/internal/transport"

	"github.com/rs/xid"
)

// Options configures a SpectrumAnalyzer.
type Options struct {
	FFTSize           int                 // Transform length; zero uses the block size.
	Window            spectrum.WindowFunc // Window applied to each block.
	StartOffset       int                 // Circular shift applied before windowing.
	Bands             []Band              // Energy bands; nil uses DefaultBands.
	IncludeMagnitudes bool                // Attach the magnitude spectrum to each Frame.
	Synchronous       bool                // Analyze on the caller's goroutine instead of the worker.
}

// Frame is the per-block summary published to transports.
type Frame struct {
	Type       string             `json:"type"`
	Session    string             `json:"session"`
	Sequence   uint64             `json:"sequence"`
	Timestamp  int64              `json:"timestamp"` // Unix nanoseconds.
	SampleRate float64            `json:"sample_rate"`
	FFTSize    int                `json:"fft_size"`
	RMS        float64            `json:"rms"`
	PeakHz     float64            `json:"peak_hz"`
	PeakDB     float64            `json:"peak_db"`
	Onset      bool               `json:"onset"`
	Bands      map[string]float64 `json:"bands"`
	Magnitudes []float64          `json:"magnitudes,omitempty"`
}

// SpectrumAnalyzer turns completed analysis blocks into spectra. Blocks
// arrive through ProcessBlock, normally as the rotation callback of a
// buffer.DoubleBlockBuffer. Decoding happens on the caller's goroutine into
// one of two pre-allocated slots; the transform runs on a worker goroutine
// so the audio path never waits for it. When both slots are busy the block
// is dropped and counted.
type SpectrumAnalyzer struct {
	sampleRate float64
	blockSize  int
	fftSize    int
	opts       Options
	bands      []Band
	session    string
	transport  transport.Transport
	onset      *OnsetDetector // Worker goroutine only.

	free  chan []float64
	ready chan []float64
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Uint64

	mu        sync.RWMutex // Protects the fields below.
	latest    *spectrum.FFTSpectrum
	magnitude []float64
	frames    uint64
}

// Compile-time checks for interface implementations.
var _ ClosableProcessor = (*SpectrumAnalyzer)(nil)
var _ SpectrumProvider = (*SpectrumAnalyzer)(nil)

// NewSpectrumAnalyzer creates an analyzer for blocks of blockSize samples. t
// may be nil, in which case frames are only kept locally.
func NewSpectrumAnalyzer(sampleRate float64, blockSize int, opts Options, t transport.Transport) (*SpectrumAnalyzer, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %g", errs.ErrInvalidConfiguration, sampleRate)
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: block size must be positive, got %d", errs.ErrInvalidConfiguration, blockSize)
	}
	fftSize := opts.FFTSize
	if fftSize == 0 {
		fftSize = blockSize
	}
	if fftSize < blockSize {
		return nil, fmt.Errorf("%w: fft size %d is shorter than block size %d",
			errs.ErrInvalidConfiguration, fftSize, blockSize)
	}
	bands := opts.Bands
	if bands == nil {
		bands = DefaultBands(sampleRate)
	}

	a := &SpectrumAnalyzer{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		fftSize:    fftSize,
		opts:       opts,
		bands:      bands,
		session:    xid.New().String(),
		transport:  t,
		onset:      NewOnsetDetector(1e-3, 1.5),
		free:       make(chan []float64, 2),
		ready:      make(chan []float64, 2),
		done:       make(chan struct{}),
		magnitude:  make([]float64, fftSize/2+1),
	}
	a.free <- make([]float64, blockSize)
	a.free <- make([]float64, blockSize)

	log.Infof("Analysis: Initializing SpectrumAnalyzer (Block: %d, FFT: %d, SampleRate: %.1f Hz, Window: %s, Session: %s)",
		blockSize, fftSize, sampleRate, opts.Window, a.session)

	if !opts.Synchronous {
		a.wg.Add(1)
		go a.run()
	}
	return a, nil
}

func (a *SpectrumAnalyzer) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case slot := <-a.ready:
			if _, err := a.Analyze(slot); err != nil {
				log.Errorf("Analysis: %v", err)
			}
			a.free <- slot
		}
	}
}

// ProcessBlock decodes one analysis block and schedules its analysis. The
// block must hold exactly the configured number of float32 samples. Blocks
// arriving after Close are ignored.
func (a *SpectrumAnalyzer) ProcessBlock(block []byte) {
	if a.closed.Load() {
		return
	}

	var slot []float64
	select {
	case slot = <-a.free:
	default:
		a.dropped.Add(1)
		return
	}

	if err := buffer.Float64sFromBytes(slot, block); err != nil {
		log.Errorf("Analysis: dropping block: %v", err)
		a.free <- slot
		return
	}

	if a.opts.Synchronous {
		if _, err := a.Analyze(slot); err != nil {
			log.Errorf("Analysis: %v", err)
		}
		a.free <- slot
		return
	}
	a.ready <- slot
}

// Analyze transforms samples, records the result as the latest spectrum and
// publishes a Frame. It may be called directly for offline use. Concurrent
// calls are serialized only at the point where the result is stored.
func (a *SpectrumAnalyzer) Analyze(samples []float64) (Frame, error) {
	s, err := spectrum.FromSignal(samples, a.sampleRate,
		spectrum.WithLength(a.fftSize),
		spectrum.WithStart(a.opts.StartOffset),
		spectrum.WithWindow(a.opts.Window),
	)
	if err != nil {
		return Frame{}, fmt.Errorf("analyze block: %w", err)
	}

	rms := RMS(samples)
	peakHz, peakDB := Peak(&s.Spectrum)
	frame := Frame{
		Type:       "spectrum",
		Session:    a.session,
		Timestamp:  time.Now().UnixNano(),
		SampleRate: a.sampleRate,
		FFTSize:    a.fftSize,
		RMS:        rms,
		PeakHz:     peakHz,
		PeakDB:     peakDB,
		Bands:      BandEnergy(&s.Spectrum, a.bands),
	}
	if a.opts.IncludeMagnitudes {
		frame.Magnitudes = append([]float64(nil), s.Magnitude()...)
	}

	a.mu.Lock()
	a.latest = s
	copy(a.magnitude, s.Magnitude())
	a.frames++
	frame.Sequence = a.frames
	frame.Onset = a.onset.Detect(rms)
	a.mu.Unlock()

	if a.transport != nil {
		if err := a.transport.Send(frame); err != nil {
			log.Warnf("Analysis: error sending frame %d: %v", frame.Sequence, err)
		}
	}
	return frame, nil
}

// Latest returns the most recent spectrum, or nil before the first block.
// The returned value is immutable and safe to share.
func (a *SpectrumAnalyzer) Latest() *spectrum.FFTSpectrum {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// Frames returns the number of analyzed blocks.
func (a *SpectrumAnalyzer) Frames() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frames
}

// Dropped returns the number of blocks skipped because the worker was busy.
func (a *SpectrumAnalyzer) Dropped() uint64 { return a.dropped.Load() }

// Session returns the identifier stamped on every Frame.
func (a *SpectrumAnalyzer) Session() string { return a.session }

// Bands returns the energy bands reported in each Frame.
func (a *SpectrumAnalyzer) Bands() []Band { return a.bands }

// BlockSize returns the expected number of samples per block.
func (a *SpectrumAnalyzer) BlockSize() int { return a.blockSize }

// GetMagnitudes returns a thread-safe copy of the latest magnitudes.
// For performance-critical readers wanting to avoid allocation, use GetMagnitudesInto.
func (a *SpectrumAnalyzer) GetMagnitudes() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]float64(nil), a.magnitude...)
}

// GetMagnitudesInto copies the latest magnitudes into dst, which must have
// GetFFTSize()/2+1 elements.
func (a *SpectrumAnalyzer) GetMagnitudesInto(dst []float64) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(dst) != len(a.magnitude) {
		return fmt.Errorf("%w: destination has %d bins, need %d", errs.ErrDimensionMismatch, len(dst), len(a.magnitude))
	}
	copy(dst, a.magnitude)
	return nil
}

// GetFrequencyForBin returns the center frequency (Hz) for a bin index, or 0
// for an index outside the spectrum.
func (a *SpectrumAnalyzer) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(a.magnitude) {
		return 0
	}
	return float64(binIndex) * a.sampleRate / float64(a.fftSize)
}

// GetFFTSize returns the transform length.
func (a *SpectrumAnalyzer) GetFFTSize() int { return a.fftSize }

// GetSampleRate returns the configured sample rate (Hz).
func (a *SpectrumAnalyzer) GetSampleRate() float64 { return a.sampleRate }

// Close stops the worker goroutine and waits for it. The transport is not
// closed; its owner does that.
func (a *SpectrumAnalyzer) Close() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.done)
		a.wg.Wait()
		log.Debugf("Analysis: SpectrumAnalyzer closed after %d frames (%d dropped)", a.Frames(), a.Dropped())
	})
	return nil
}
