package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/stepsynth-go"
	"github.com/cbegin/stepsynth-go/internal/config"
	"github.com/cbegin/stepsynth-go/internal/midiin"
	"github.com/cbegin/stepsynth-go/internal/modmath"
)

var (
	version = "0.1.0"

	configPath  string
	verbose     bool
	patternName string
	outDir      string
	seed        int64
	samplePath  string
	bars        int
	midiPort    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stepsynth",
	Short: "Drum machine and synthesizer",
	Long: `stepsynth plays and renders step-sequenced patterns built from
drum one-shots, subtractive synth voices and samples.

The demo library holds two patterns, "VERSE A" and "CHORUS".`,
	Version:      version,
	SilenceUsage: true,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a pattern to a WAV file",
	Long: `Render one pass of a pattern, plus a two second tail, to
"<pattern name>.wav" in the output directory.

Examples:
  stepsynth render --pattern CHORUS --out renders
  stepsynth render --seed 7 --sample clap.wav`,
	RunE: runRender,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a pattern live",
	Long: `Loop a pattern through the audio device. With --midi, notes from
the named MIDI input play the selected instrument.

Examples:
  stepsynth play --bars 4
  stepsynth play --pattern CHORUS --midi "Keystation"`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(playCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVarP(&patternName, "pattern", "p", "VERSE A", "Pattern name")
	rootCmd.PersistentFlags().StringVar(&samplePath, "sample", "", "WAV sample to add as an instrument")

	renderCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	renderCmd.Flags().Int64Var(&seed, "seed", 0, "Noise and reverb seed (0 = random)")

	playCmd.Flags().IntVar(&bars, "bars", 0, "Bars to play before stopping (0 = until interrupted)")
	playCmd.Flags().StringVar(&midiPort, "midi", "", "MIDI input port name (overrides midi_port)")
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// setup loads the configuration and the demo library, with the --sample
// instrument added when given.
func setup(log *slog.Logger) (config.Config, *stepsynth.Library, *stepsynth.Pattern, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	lib, err := demoLibrary()
	if err != nil {
		return cfg, nil, nil, err
	}
	if samplePath != "" {
		f, err := os.Open(samplePath)
		if err != nil {
			return cfg, nil, nil, err
		}
		defer f.Close()
		name := strings.TrimSuffix(filepath.Base(samplePath), filepath.Ext(samplePath))
		inst, err := stepsynth.LoadSampleInstrument(lib, name, f, cfg.SampleRate)
		if err != nil {
			return cfg, nil, nil, fmt.Errorf("%s: %w", samplePath, err)
		}
		if err := addSampleTrack(lib, samplePath, inst); err != nil {
			return cfg, nil, nil, err
		}
		log.Info("sample loaded", "path", samplePath, "instrument", inst.ID)
	}
	p, ok := lib.PatternByName(patternName)
	if !ok {
		return cfg, nil, nil, fmt.Errorf("%w: %q", stepsynth.ErrUnknownPattern, patternName)
	}
	return cfg, lib, p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRender(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg, lib, p, err := setup(log)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	start := time.Now()
	path, err := stepsynth.ExportWAV(ctx, outDir, p, lib.Instrument,
		stepsynth.WithRenderSampleRate(cfg.SampleRate),
		stepsynth.WithRenderSeed(seed),
		stepsynth.WithRenderEffects(cfg.Effects),
		stepsynth.WithRenderLogger(log),
	)
	if err != nil {
		return err
	}
	log.Info("rendered", "path", path, "elapsed", time.Since(start).Round(time.Millisecond))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg, lib, p, err := setup(log)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	engine, err := stepsynth.NewEngine(stepsynth.WithConfig(cfg), stepsynth.WithLogger(log))
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.SetBPM(p.BPM)

	port := cfg.MIDIPort
	if midiPort != "" {
		port = midiPort
	}
	if port != "" {
		d := &midiin.Dispatcher{Target: engine, Instrument: lib.Selected, Logger: log}
		in, err := midiin.Open(port, d, log)
		if err != nil {
			return err
		}
		defer in.Close()
	}

	if err := engine.Start(engine.PatternTicker(lib, p.ID)); err != nil {
		return err
	}
	var until <-chan time.Time
	if bars > 0 {
		steps := float64(bars * p.MaxStepCount())
		until = time.After(time.Duration(steps * modmath.SecondsPerStep(p.BPM) * float64(time.Second)))
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted")
			engine.Stop()
			return nil
		case <-until:
			engine.Stop()
			// let releases and the reverb ring out
			time.Sleep(stepsynth.RenderTail * time.Second)
			return nil
		case <-ticker.C:
			if !engine.Playing() {
				return engine.Err()
			}
		}
	}
}
