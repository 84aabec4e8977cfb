// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"filterstream/internal/errs"
	"filterstream/internal/filter"
	"filterstream/internal/log"
	"filterstream/internal/spectrum"
	"filterstream/internal/transport/udp"
	"filterstream/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// candidates are searched in order when LoadConfig gets an empty path.
var candidates = []string{"config.yaml", "filterstream.yaml"}

// LoadConfig loads configuration from the YAML file at path. If path is empty
// the default locations are searched, and if none exists the built-in
// defaults are used. Environment overrides are applied after the file, then
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FFTLength resolves analysis.fft_size, where zero selects the next power of
// two that holds a whole analysis block.
func (c *Config) FFTLength() int {
	if c.Analysis.FFTSize > 0 {
		return c.Analysis.FFTSize
	}
	return bitint.NextPowerOfTwo(c.Analysis.BlockSize)
}

// Level resolves the effective log level. Debug wins over log_level.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// Validate checks ranges and cross-field constraints. Every failure wraps
// errs.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{errs.ErrInvalidConfiguration}, args...)...)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %g outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return invalid("audio.input_channels %d outside [1, %d]", a.InputChannels, MaxChannels)
	}
	if a.OutputChannels < 1 || a.OutputChannels > MaxChannels {
		return invalid("audio.output_channels %d outside [1, %d]", a.OutputChannels, MaxChannels)
	}
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return invalid("device ids must be >= %d", MinDeviceID)
	}

	an := c.Analysis
	if an.BlockSize <= 0 {
		return invalid("analysis.block_size must be positive, got %d", an.BlockSize)
	}
	if a.FramesPerBuffer > an.BlockSize {
		return invalid("audio.frames_per_buffer %d exceeds analysis.block_size %d", a.FramesPerBuffer, an.BlockSize)
	}
	if an.FFTSize != 0 && an.FFTSize < an.BlockSize {
		return invalid("analysis.fft_size %d is shorter than block_size %d", an.FFTSize, an.BlockSize)
	}
	if _, err := spectrum.ParseWindowFunc(an.FFTWindow); err != nil {
		return fmt.Errorf("analysis.fft_window: %w", err)
	}
	for i, b := range an.Bands {
		if b.Name == "" || b.Low < 0 || b.High <= b.Low {
			return invalid("analysis.bands[%d] needs a name and 0 <= low < high", i)
		}
	}

	if _, err := filter.BuildChain(c.Filters, a.SampleRate); err != nil {
		return fmt.Errorf("filters: %w", err)
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return invalid("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth)
	}
	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		return invalid("recording.output_dir must be set when recording is enabled")
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when websocket is enabled")
	}
	if t.NATSEnabled && (t.NATSURL == "" || t.NATSSubject == "") {
		return invalid("transport.nats_url and nats_subject must be set when nats is enabled")
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return invalid("transport.udp_target_address must be set when UDP is enabled")
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
		if bins := c.FFTLength()/2 + 1; bins > udp.MaxMagnitudes {
			return invalid("analysis fft length %d gives %d bins, UDP packets hold at most %d",
				c.FFTLength(), bins, udp.MaxMagnitudes)
		}
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)

	// ENV_AUDIO_{...}
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = f
			log.Debugf("configuration: overriding audio.sample_rate from env: %g", f)
		} else {
			log.Warnf("configuration: ignoring ENV_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	envInt("ENV_FRAMES_PER_BUFFER", &c.Audio.FramesPerBuffer)
	envInt("ENV_INPUT_DEVICE", &c.Audio.InputDevice)
	envInt("ENV_OUTPUT_DEVICE", &c.Audio.OutputDevice)

	// ENV_ANALYSIS_{...}
	envInt("ENV_BLOCK_SIZE", &c.Analysis.BlockSize)
	envString("ENV_FFT_WINDOW", &c.Analysis.FFTWindow)

	// ENV_{WEBSOCKET,NATS,UDP}_{...}
	envBool("ENV_WEBSOCKET_ENABLED", &c.Transport.WebSocketEnabled)
	envString("ENV_WEBSOCKET_ADDRESS", &c.Transport.WebSocketAddress)
	envBool("ENV_NATS_ENABLED", &c.Transport.NATSEnabled)
	envString("ENV_NATS_URL", &c.Transport.NATSURL)
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			log.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		} else {
			log.Warnf("configuration: ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Debugf("configuration: overriding from env %s=%s", key, val)
	}
}

func envBool(key string, dst *bool) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = b
		log.Debugf("configuration: overriding from env %s=%v", key, b)
	}
}

func envInt(key string, dst *int) {
	if val, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = n
		log.Debugf("configuration: overriding from env %s=%d", key, n)
	}
}
