// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"filterstream/internal/analysis"
	"filterstream/internal/audio"
	"filterstream/internal/config"
	"filterstream/internal/log"
	"filterstream/internal/source"
	"filterstream/internal/tui"
	"filterstream/pkg/build"
	"filterstream/pkg/utils"

	"github.com/spf13/cobra"
)

// options holds flag values shared by every command. Flags left unset on
// the command line do not override the configuration file.
type options struct {
	configPath      string
	inputDevice     int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	record          bool
	output          string
	verbose         bool
	monitor         bool
}

// Execute parses args and runs the selected command.
func Execute(args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCommand() *cobra.Command {
	info := build.GetBuildInfo()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Audio Device Configuration
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "f", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./filterstream.yaml)")
	pf.IntVarP(&opts.inputDevice, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	pf.IntVar(&opts.outputDevice, "output-device", config.DefaultDeviceID,
		"Output device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&opts.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")

	// Recording Configuration
	pf.BoolVarP(&opts.record, "record", "r", false,
		"Record the filtered output to a WAV file")
	pf.StringVarP(&opts.output, "output", "o", "",
		"Output WAV file. Default is a timestamped file in recording.output_dir")

	// Debug Configuration
	pf.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.Flags().BoolVarP(&opts.monitor, "tui", "t", false,
		"Show a live spectrum monitor while streaming")

	rootCmd.AddCommand(
		newListCommand(),
		newProcessCommand(opts),
		newToneCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// loadConfig reads the configuration file and applies explicitly set flags
// on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = opts.inputDevice
	}
	if flags.Changed("output-device") {
		cfg.Audio.OutputDevice = opts.outputDevice
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = opts.framesPerBuffer
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = opts.record
	}

	log.SetLevel(cfg.Level())
	if opts.verbose {
		log.SetLevel(log.LevelDebug)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runLive streams from the configured devices until ctx is cancelled or
// SIGINT/SIGTERM arrives.
func runLive(ctx context.Context, cfg *config.Config, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("Error closing audio engine: %v", err)
		}
	}()

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(opts.output); err != nil {
			return err
		}
	}

	if !opts.monitor {
		log.Infof("Streaming; press Ctrl+C to stop")
		return engine.Run(ctx)
	}

	// The monitor owns the terminal, so logs would corrupt it.
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	if err := engine.StartStream(); err != nil {
		return err
	}
	title := fmt.Sprintf("%s %.0f Hz", build.GetBuildInfo().Name, cfg.Audio.SampleRate)
	if err := tui.RunMonitor(ctx, title, engine.Analyzer(), engine.Analyzer().Bands()); err != nil {
		engine.StopStream()
		return err
	}
	return engine.StopStream()
}

func newListCommand() *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !interactive {
				return audio.ListDevices(cmd.OutOrStdout())
			}
			sel, err := tui.PickDevice(audio.HostDevices)
			if err != nil || sel == nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n  --device %d --sample-rate %.0f\n",
				sel.Name, sel.DeviceID, sel.SampleRate)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick a device in a terminal UI")
	return cmd
}

func newProcessCommand(opts *options) *cobra.Command {
	var magnitudes bool
	cmd := &cobra.Command{
		Use:   "process <input>",
		Short: "Filter and analyze an audio file (.wav, .mp3, .ogg) offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			src, err := source.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			// Offline material runs at its own rate.
			cfg.Audio.SampleRate = src.SampleRate()
			engineOpts := []audio.Option{audio.WithSynchronousAnalysis()}
			if magnitudes {
				engineOpts = append(engineOpts, audio.WithMagnitudes())
			}
			engine, err := audio.NewEngine(cfg, engineOpts...)
			if err != nil {
				return err
			}
			defer engine.Close()

			var sink audio.Sink
			if opts.output != "" {
				rec, err := audio.NewRecorder(opts.output, cfg.Audio.SampleRate, cfg.Recording.BitDepth, cfg.Audio.FramesPerBuffer)
				if err != nil {
					return err
				}
				defer rec.Close()
				sink = rec
			}

			start := time.Now()
			n, err := engine.ProcessSource(src, sink)
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), args[0], n, cfg.Audio.SampleRate, engine.Analyzer(), time.Since(start))
			if opts.output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Filtered output saved to: %s\n", opts.output)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&magnitudes, "magnitudes", false, "Attach full magnitude spectra to published frames")
	return cmd
}

func writeSummary(w io.Writer, name string, samples int64, rate float64, a *analysis.SpectrumAnalyzer, took time.Duration) {
	fmt.Fprintf(w, "%s: %d samples (%.2fs at %.0f Hz) in %v\n",
		name, samples, float64(samples)/rate, rate, took.Round(time.Millisecond))
	fmt.Fprintf(w, "Spectra: %d (FFT %d, session %s)\n", a.Frames(), a.GetFFTSize(), a.Session())

	latest := a.Latest()
	if latest == nil {
		return
	}
	hz, db := analysis.Peak(&latest.Spectrum)
	fmt.Fprintf(w, "Last block peak: %.1f Hz (%.1f dB)\n", hz, db)

	bands := analysis.BandEnergy(&latest.Spectrum, a.Bands())
	names := make([]string, 0, len(bands))
	for name := range bands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %.3g\n", name, bands[name])
	}
}

func newToneCommand(opts *options) *cobra.Command {
	var (
		wave      string
		frequency float64
		amplitude float64
		duration  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tone <output.wav>",
		Short: "Write a synthetic test signal to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			rate := cfg.Audio.SampleRate
			n := int(duration.Seconds() * rate)
			samples, err := utils.Generate(wave, n, rate, frequency, amplitude)
			if err != nil {
				return err
			}

			rec, err := audio.NewRecorder(args[0], rate, cfg.Recording.BitDepth, n)
			if err != nil {
				return err
			}
			if err := rec.Write(samples); err != nil {
				rec.Close()
				return err
			}
			if err := rec.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d samples of %s to %s\n", n, wave, args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&wave, "wave", "sine", "Waveform: sine, harmonic or impulse")
	f.Float64Var(&frequency, "freq", 440, "Frequency in Hz")
	f.Float64Var(&amplitude, "amplitude", 0.5, "Peak amplitude in [0, 1]")
	f.DurationVar(&duration, "duration", time.Second, "Signal length")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.GetBuildInfo())
		},
	}
}
