// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filterstream/internal/errs"
	"filterstream/internal/filter"
	"filterstream/internal/log"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %g, want %d", cfg.Audio.SampleRate, DefaultSampleRate)
	}
	if got, want := cfg.FFTLength(), 1024; got != want {
		t.Errorf("FFTLength() = %d, want %d", got, want)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: warn
audio:
  sample_rate: 44100
  frames_per_buffer: 256
  output_channels: 2
analysis:
  block_size: 1000
  fft_window: blackman
  bands:
    - {name: low, low: 20, high: 250}
filters:
  - type: gain
    gain_db: -6
  - type: biquad
    b0: 0.5
    b1: 0.5
transport:
  udp_enabled: true
  udp_send_interval: 10ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.FramesPerBuffer != 256 {
		t.Errorf("audio section not applied: %+v", cfg.Audio)
	}
	if cfg.Audio.InputChannels != DefaultChannels {
		t.Errorf("unset field lost its default: %+v", cfg.Audio)
	}
	if len(cfg.Filters) != 2 || cfg.Filters[0].GainDB != -6 || cfg.Filters[1].B1 != 0.5 {
		t.Errorf("filters = %+v", cfg.Filters)
	}
	if got := cfg.FFTLength(); got != 1024 {
		t.Errorf("FFTLength() = %d, want 1024", got)
	}
	if cfg.Transport.UDPSendInterval != 10*time.Millisecond {
		t.Errorf("udp_send_interval = %s", cfg.Transport.UDPSendInterval)
	}
	if cfg.Level() != log.LevelWarn {
		t.Errorf("Level() = %s, want WARN", cfg.Level())
	}
	if len(cfg.Analysis.Bands) != 1 || cfg.Analysis.Bands[0].High != 250 {
		t.Errorf("bands = %+v", cfg.Analysis.Bands)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_SAMPLE_RATE", "96000")
	t.Setenv("ENV_FFT_WINDOW", "hamming")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "5ms")
	t.Setenv("ENV_DEBUG", "not-a-bool")

	path := writeTempConfig(t, "audio:\n  sample_rate: 44100\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 96000 {
		t.Errorf("env must win over the file, got %g", cfg.Audio.SampleRate)
	}
	if cfg.Analysis.FFTWindow != "hamming" {
		t.Errorf("fft_window = %q", cfg.Analysis.FFTWindow)
	}
	if cfg.Transport.UDPSendInterval != 5*time.Millisecond {
		t.Errorf("udp_send_interval = %s", cfg.Transport.UDPSendInterval)
	}
	if cfg.Debug {
		t.Error("unparseable ENV_DEBUG must be ignored")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate too low", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"zero frames", func(c *Config) { c.Audio.FramesPerBuffer = 0 }},
		{"too many frames", func(c *Config) { c.Audio.FramesPerBuffer = MaxBufferFrames + 1 }},
		{"no input channels", func(c *Config) { c.Audio.InputChannels = 0 }},
		{"bad device", func(c *Config) { c.Audio.InputDevice = -2 }},
		{"zero block", func(c *Config) { c.Analysis.BlockSize = 0 }},
		{"frames exceed block", func(c *Config) { c.Analysis.BlockSize = c.Audio.FramesPerBuffer - 1 }},
		{"short fft", func(c *Config) { c.Analysis.FFTSize = 512 }},
		{"unknown window", func(c *Config) { c.Analysis.FFTWindow = "kaiser" }},
		{"inverted band", func(c *Config) { c.Analysis.Bands = []BandConfig{{Name: "x", Low: 100, High: 50}} }},
		{"unknown filter", func(c *Config) { c.Filters = append(c.Filters, filterSpec("reverb")) }},
		{"bit depth", func(c *Config) { c.Recording.BitDepth = 8 }},
		{"udp without interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}},
		{"udp spectrum too large", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Analysis.FFTSize = 65536
		}},
		{"nats without subject", func(c *Config) {
			c.Transport.NATSEnabled = true
			c.Transport.NATSSubject = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, errs.ErrInvalidConfiguration) {
				t.Errorf("Validate() = %v, want ErrInvalidConfiguration", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.LogLevel = "error"
	if cfg.Level() != log.LevelError {
		t.Errorf("Level() = %s", cfg.Level())
	}
	cfg.Debug = true
	if cfg.Level() != log.LevelDebug {
		t.Errorf("debug must force DEBUG, got %s", cfg.Level())
	}
}

func filterSpec(kind string) filter.Spec { return filter.Spec{Type: kind} }
