// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"filterstream/internal/filter"
)

// Core configuration constants that define the boundaries and defaults
// for the streaming engine.
const (
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 48000
	DefaultFramesPerBuffer = 512 // Balanced latency/performance
	DefaultChannels        = 1
	DefaultBlockSize       = 1024 // Samples per analysis block
	DefaultFFTWindow       = "hann"
	DefaultBitDepth        = 16
	DefaultLogLevel        = "info"

	DefaultWebSocketAddress = "127.0.0.1:8080"
	DefaultNATSURL          = "nats://127.0.0.1:4222"
	DefaultNATSSubject      = "filterstream.spectrum"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MaxChannels     = 32
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Filters   []filter.Spec   `yaml:"filters"` // Chain positions in order.
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds device and stream settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz, shared by the stream and every filter.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Samples per streamed block.
	InputChannels   int     `yaml:"input_channels"`    // Channel 0 is filtered.
	OutputChannels  int     `yaml:"output_channels"`   // Filtered output is copied to each.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
}

// AnalysisConfig controls the spectrum of each ready analysis block.
type AnalysisConfig struct {
	BlockSize   int          `yaml:"block_size"`   // Samples per analysis block.
	FFTSize     int          `yaml:"fft_size"`     // 0 selects the next power of two >= block_size.
	FFTWindow   string       `yaml:"fft_window"`   // Window name, e.g. "hann".
	StartOffset int          `yaml:"start_offset"` // Circular shift applied before the transform.
	Bands       []BandConfig `yaml:"bands"`        // Named energy bands; empty uses the defaults.
}

// BandConfig names a frequency range in Hz.
type BandConfig struct {
	Name string  `yaml:"name"`
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// RecordingConfig holds settings for writing the filtered output to disk.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16, 24 or 32.
}

// TransportConfig selects where spectrum frames are published.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
	NATSEnabled      bool          `yaml:"nats_enabled"`
	NATSURL          string        `yaml:"nats_url"`
	NATSSubject      string        `yaml:"nats_subject"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// Default returns a configuration with every field at its built-in value.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			OutputChannels:  DefaultChannels,
		},
		Analysis: AnalysisConfig{
			BlockSize: DefaultBlockSize,
			FFTWindow: DefaultFFTWindow,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			NATSURL:          DefaultNATSURL,
			NATSSubject:      DefaultNATSSubject,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
