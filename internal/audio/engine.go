// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time streaming engine:
- Duplex capture and playback using PortAudio
- Per-block filtering through a stream.Streamer
- Accumulation of raw input into analysis blocks with a double buffer
- Spectrum analysis published to the configured transports
- WAV recording of the filtered output

Thread Safety:
- Process runs on the audio callback thread and must not be called
  concurrently with itself or with ProcessSource
- Pre-allocates buffers to avoid GC in the hot path
- Recording can be started and stopped from any goroutine
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"filterstream/internal/analysis"
	"filterstream/internal/buffer"
	"filterstream/internal/config"
	"filterstream/internal/errs"
	"filterstream/internal/filter"
	"filterstream/internal/log"
	"filterstream/internal/source"
	"filterstream/internal/spectrum"
	"filterstream/internal/stream"
	"filterstream/internal/transport"
	"filterstream/internal/transport/udp"
	"filterstream/pkg/bitint"

	"github.com/gordonklaus/portaudio"
)

// Sink receives filtered mono blocks from ProcessSource. *Recorder is a Sink.
type Sink interface {
	Write(samples []float64) error
}

// Option customizes an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	transport   transport.Transport
	synchronous bool
	magnitudes  bool
}

// WithTransport publishes frames to t instead of the transports named in the
// configuration. The engine takes ownership of t.
func WithTransport(t transport.Transport) Option {
	return func(o *engineOptions) { o.transport = t }
}

// WithSynchronousAnalysis analyzes every block on the producing goroutine.
// Offline processing uses it so that no block is dropped.
func WithSynchronousAnalysis() Option {
	return func(o *engineOptions) { o.synchronous = true }
}

// WithMagnitudes attaches the full magnitude spectrum to every frame.
func WithMagnitudes() Option {
	return func(o *engineOptions) { o.magnitudes = true }
}

type Engine struct {
	// Core configuration and state.
	config      *config.Config
	sampleRate  float64
	frames      int
	inChannels  int
	outChannels int

	// Filtering and analysis.
	streamer  *stream.Streamer
	blocks    *buffer.DoubleBlockBuffer
	analyzer  *analysis.SpectrumAnalyzer
	transport transport.Transport
	publisher *udp.UDPPublisher
	sender    *udp.UDPSender

	// Pre-allocated callback buffers.
	mono     []float64
	filtered []float64
	raw      []float32
	chunk    []byte

	// Device stream.
	streamMu sync.Mutex
	stream   *portaudio.Stream

	// Recording state.
	recMu    sync.Mutex
	recorder atomic.Pointer[Recorder]

	callbacks  atomic.Uint64
	failures   atomic.Uint64
	recFailure atomic.Uint64
	closeOnce  sync.Once
	closeErr   error
}

// NewEngine wires the filter chain, double buffer, analyzer and transports
// described by cfg. No device is opened until StartStream.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: engine needs a configuration", errs.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	rate := cfg.Audio.SampleRate
	frames := cfg.Audio.FramesPerBuffer

	chain, err := filter.BuildChain(cfg.Filters, rate)
	if err != nil {
		return nil, err
	}
	streamer, err := stream.NewStreamer(chain)
	if err != nil {
		return nil, err
	}

	t := o.transport
	if t == nil {
		if t, err = buildTransport(cfg.Transport); err != nil {
			return nil, err
		}
	}

	if n := cfg.FFTLength(); !bitint.IsPowerOfTwo(n) {
		log.Warnf("Audio: FFT size %d is not a power of two; analysis will be slower", n)
	}
	window, err := spectrum.ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		t.Close()
		return nil, err
	}
	analyzer, err := analysis.NewSpectrumAnalyzer(rate, cfg.Analysis.BlockSize, analysis.Options{
		FFTSize:           cfg.FFTLength(),
		Window:            window,
		StartOffset:       cfg.Analysis.StartOffset,
		Bands:             bandsFromConfig(cfg.Analysis.Bands),
		IncludeMagnitudes: o.magnitudes,
		Synchronous:       o.synchronous,
	}, t)
	if err != nil {
		t.Close()
		return nil, err
	}

	blocks, err := buffer.NewDoubleBlockBuffer(
		cfg.Analysis.BlockSize*buffer.BytesPerSample,
		frames*buffer.BytesPerSample,
		analyzer.ProcessBlock,
	)
	if err != nil {
		analyzer.Close()
		t.Close()
		return nil, err
	}

	e := &Engine{
		config:      cfg,
		sampleRate:  rate,
		frames:      frames,
		inChannels:  cfg.Audio.InputChannels,
		outChannels: cfg.Audio.OutputChannels,
		streamer:    streamer,
		blocks:      blocks,
		analyzer:    analyzer,
		transport:   t,
		mono:        make([]float64, frames),
		filtered:    make([]float64, frames),
		raw:         make([]float32, frames),
		chunk:       make([]byte, frames*buffer.BytesPerSample),
	}

	if cfg.Transport.UDPEnabled {
		if err := e.startUDP(cfg.Transport); err != nil {
			analyzer.Close()
			t.Close()
			return nil, err
		}
	}

	log.Infof("Audio: Engine ready (%d filters, %.0f Hz, %d frames/buffer, analysis block %d, FFT %d)",
		chain.Len(), rate, frames, cfg.Analysis.BlockSize, cfg.FFTLength())
	return e, nil
}

func buildTransport(tc config.TransportConfig) (transport.Transport, error) {
	ts := transport.Multi{transport.NewLoggingTransport()}
	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddress)
		if err != nil {
			ts.Close()
			return nil, err
		}
		ts = append(ts, ws)
	}
	if tc.NATSEnabled {
		nt, err := transport.NewNATSTransport(tc.NATSURL, tc.NATSSubject)
		if err != nil {
			ts.Close()
			return nil, err
		}
		ts = append(ts, nt)
	}
	return ts, nil
}

func (e *Engine) startUDP(tc config.TransportConfig) error {
	sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
	if err != nil {
		return err
	}
	publisher, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender, e.analyzer)
	if err != nil {
		sender.Close()
		return err
	}
	publisher.Start()
	e.sender = sender
	e.publisher = publisher
	return nil
}

func bandsFromConfig(bands []config.BandConfig) []analysis.Band {
	if len(bands) == 0 {
		return nil
	}
	out := make([]analysis.Band, len(bands))
	for i, b := range bands {
		out[i] = analysis.Band{Name: b.Name, Low: b.Low, High: b.High}
	}
	return out
}

// StartStream opens a duplex PortAudio stream on the configured devices and
// starts calling Process. PortAudio must be initialized.
func (e *Engine) StartStream() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	if e.stream != nil {
		return errors.New("stream already running")
	}

	in, err := InputDevice(e.config.Audio.InputDevice)
	if err != nil {
		return err
	}
	out, err := OutputDevice(e.config.Audio.OutputDevice)
	if err != nil {
		return err
	}

	inLatency, outLatency := in.DefaultHighInputLatency, out.DefaultHighOutputLatency
	if e.config.Audio.LowLatency {
		inLatency, outLatency = in.DefaultLowInputLatency, out.DefaultLowOutputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.inChannels,
			Device:   in,
			Latency:  inLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.outChannels,
			Device:   out,
			Latency:  outLatency,
		},
		FramesPerBuffer: e.frames,
		SampleRate:      e.sampleRate,
	}

	s, err := portaudio.OpenStream(params, e.Process)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	e.stream = s

	log.Infof("Audio: Streaming %s -> %s (latency in %v, out %v)", in.Name, out.Name, inLatency, outLatency)
	return nil
}

// StopStream stops and closes the device stream, if any.
func (e *Engine) StopStream() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	if e.stream == nil {
		return nil
	}

	stopErr := e.stream.Stop()
	closeErr := e.stream.Close()
	e.stream = nil
	log.Infof("Audio: Stream stopped after %d callbacks (%d failed)", e.callbacks.Load(), e.failures.Load())
	return errors.Join(stopErr, closeErr)
}

// Process is the audio callback body. in and out hold interleaved frames
// for the configured input and output channel counts. Channel 0 of the input
// is filtered and copied to every output channel; the raw channel 0 samples
// feed the analysis double buffer. On failure the output is silenced.
//
// Performance Critical (Hot Path):
// - Uses pre-allocated buffers only
// - No dynamic allocations unless a block fails
func (e *Engine) Process(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.callbacks.Add(1)
	if err := e.process(in, out); err != nil {
		clear(out)
		if e.failures.Add(1) == 1 {
			log.Errorf("Audio: callback failed: %v", err)
		}
	}
}

func (e *Engine) process(in, out []float32) error {
	if len(in) != e.frames*e.inChannels || len(out) != e.frames*e.outChannels {
		return fmt.Errorf("%w: callback got %d input and %d output samples, want %d and %d",
			errs.ErrDimensionMismatch, len(in), len(out), e.frames*e.inChannels, e.frames*e.outChannels)
	}

	for i := range e.frames {
		x := in[i*e.inChannels]
		e.raw[i] = x
		e.mono[i] = float64(x)
	}

	if err := e.streamer.StreamBlockInto(e.filtered, e.mono); err != nil {
		return err
	}
	for i, y := range e.filtered {
		v := float32(y)
		for c := range e.outChannels {
			out[i*e.outChannels+c] = v
		}
	}

	e.record(e.filtered)

	if err := buffer.PutFloat32s(e.chunk, e.raw); err != nil {
		return err
	}
	return e.blocks.InputChunk(e.chunk)
}

func (e *Engine) record(samples []float64) {
	rec := e.recorder.Load()
	if rec == nil {
		return
	}
	if err := rec.Write(samples); err != nil && !errors.Is(err, os.ErrClosed) {
		if e.recFailure.Add(1) == 1 {
			log.Warnf("Audio: %v", err)
		}
	}
}

// ProcessSource drives src through the same path as the live callback, one
// block of FramesPerBuffer samples at a time, and writes the filtered output
// to sink (which may be nil). A short final block is filtered at its own
// length and zero-padded for analysis; the trailing partial analysis block
// is completed with silence. It returns the number of samples processed.
func (e *Engine) ProcessSource(src source.Source, sink Sink) (int64, error) {
	if src.SampleRate() != e.sampleRate {
		return 0, fmt.Errorf("%w: source rate %.0f Hz differs from engine rate %.0f Hz",
			errs.ErrInvalidConfiguration, src.SampleRate(), e.sampleRate)
	}

	var total int64
	for {
		n, err := src.ReadBlock(e.mono)
		if n > 0 {
			if perr := e.processMono(n, sink); perr != nil {
				return total, perr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read source: %w", err)
		}
	}

	if err := e.flushAnalysis(); err != nil {
		return total, err
	}
	log.Infof("Audio: Processed %d samples (%.2fs)", total, float64(total)/e.sampleRate)
	return total, nil
}

// processMono filters the first n samples of e.mono and feeds the analysis
// buffer with them, padded to a full chunk.
func (e *Engine) processMono(n int, sink Sink) error {
	filtered := e.filtered[:n]
	if err := e.streamer.StreamBlockInto(filtered, e.mono[:n]); err != nil {
		return err
	}
	if sink != nil {
		if err := sink.Write(filtered); err != nil {
			return err
		}
	}
	e.record(filtered)

	for i := range e.raw {
		if i < n {
			e.raw[i] = float32(e.mono[i])
		} else {
			e.raw[i] = 0
		}
	}
	if err := buffer.PutFloat32s(e.chunk, e.raw); err != nil {
		return err
	}
	return e.blocks.InputChunk(e.chunk)
}

// flushAnalysis pushes silent chunks until a partially filled analysis
// block rotates.
func (e *Engine) flushAnalysis() error {
	if e.blocks.Offset() == 0 {
		return nil
	}
	clear(e.chunk)
	for r := e.blocks.Rotations(); e.blocks.Rotations() == r; {
		if err := e.blocks.InputChunk(e.chunk); err != nil {
			return err
		}
	}
	return nil
}

// Analyzer exposes the spectrum analyzer, for example to read the latest
// spectrum.
func (e *Engine) Analyzer() *analysis.SpectrumAnalyzer { return e.analyzer }

// Streamer exposes the block streamer that owns the filter chain.
func (e *Engine) Streamer() *stream.Streamer { return e.streamer }

// SampleRate returns the stream rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// FramesPerBuffer returns the callback block length.
func (e *Engine) FramesPerBuffer() int { return e.frames }

// Stats is a snapshot of engine counters.
type Stats struct {
	Callbacks        uint64
	Failures         uint64
	AnalysisBlocks   uint64
	AnalysisDropped  uint64
	FilteredBlocks   uint64
	RecordingSamples int64
}

// Stats returns the current counters. Safe to call from any goroutine.
func (e *Engine) Stats() Stats {
	s := Stats{
		Callbacks:       e.callbacks.Load(),
		Failures:        e.failures.Load(),
		AnalysisBlocks:  e.analyzer.Frames(),
		AnalysisDropped: e.analyzer.Dropped(),
		FilteredBlocks:  e.streamer.Blocks(),
	}
	if rec := e.recorder.Load(); rec != nil {
		s.RecordingSamples = rec.Samples()
	}
	return s
}

// Close stops the stream and recording, then shuts down analysis and every
// transport. It is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errList []error
		errList = append(errList, e.StopStream(), e.StopRecording())
		if e.publisher != nil {
			errList = append(errList, e.publisher.Close())
		}
		if e.sender != nil {
			errList = append(errList, e.sender.Close())
		}
		errList = append(errList, e.analyzer.Close(), e.transport.Close())
		e.closeErr = errors.Join(errList...)
		log.Debugf("Audio: Engine closed")
	})
	return e.closeErr
}

// statsInterval is how often Run logs engine counters.
const statsInterval = 10 * time.Second

// Run starts the device stream, logs counters periodically and stops the
// stream when ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.StartStream(); err != nil {
		return err
	}
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.StopStream()
		case <-ticker.C:
			s := e.Stats()
			log.WithFields(map[string]any{
				"callbacks": s.Callbacks,
				"failures":  s.Failures,
				"spectra":   s.AnalysisBlocks,
				"dropped":   s.AnalysisDropped,
			}).Info("Audio: engine stats")
		}
	}
}
