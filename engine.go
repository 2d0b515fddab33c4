package stepsynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cbegin/stepsynth-go/internal/analysis"
	intaudio "github.com/cbegin/stepsynth-go/internal/audio"
	"github.com/cbegin/stepsynth-go/internal/config"
	"github.com/cbegin/stepsynth-go/internal/effects"
	"github.com/cbegin/stepsynth-go/internal/render"
	"github.com/cbegin/stepsynth-go/internal/sequencer"
	"github.com/cbegin/stepsynth-go/internal/voice"
)

const (
	DefaultSampleRate   = 44100
	DefaultMasterVolume = 0.5
	masterTimeConstant  = 0.1
)

// SampleSource fills interleaved stereo float32 frames on demand.
type SampleSource interface {
	Process(dst []float32)
}

// Backend is the live audio output. It pulls from the SampleSource it was
// created with while resumed.
type Backend interface {
	Resume() error
	Suspend() error
	Suspended() bool
	Close() error
}

// BackendFactory creates the live output for an engine.
type BackendFactory func(sampleRate int, src SampleSource) (Backend, error)

// EbitenBackend plays through the ebiten audio device.
func EbitenBackend(sampleRate int, src SampleSource) (Backend, error) {
	p, err := intaudio.NewPlayer(sampleRate, src)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	backend      BackendFactory
	sampleRate   int
	logger       *slog.Logger
	lookahead    time.Duration
	interval     time.Duration
	bpm          float64
	masterVolume float64
	maxHold      float64
	effects      effects.Config
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		backend:      EbitenBackend,
		sampleRate:   DefaultSampleRate,
		lookahead:    sequencer.DefaultLookahead,
		interval:     sequencer.DefaultInterval,
		bpm:          sequencer.DefaultBPM,
		masterVolume: DefaultMasterVolume,
		maxHold:      voice.DefaultMaxHold,
		effects:      effects.DefaultConfig(),
	}
}

// WithBackend replaces the ebiten audio output.
func WithBackend(f BackendFactory) Option {
	return func(cfg *engineConfig) {
		cfg.backend = f
	}
}

// WithSampleRate sets the live sample rate. The default is 44100 Hz.
func WithSampleRate(rate int) Option {
	return func(cfg *engineConfig) {
		cfg.sampleRate = rate
	}
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = l
	}
}

// WithLookahead sets how far ahead of the audio clock steps are scheduled.
func WithLookahead(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.lookahead = d
	}
}

// WithTickInterval sets how often the scheduler wakes.
func WithTickInterval(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.interval = d
	}
}

// WithEffects sets the send levels and reverb seed of the effects chain.
func WithEffects(c EffectsConfig) Option {
	return func(cfg *engineConfig) {
		cfg.effects = c
	}
}

// WithConfig applies a loaded configuration file. Options after it still
// override its values.
func WithConfig(c config.Config) Option {
	return func(cfg *engineConfig) {
		cfg.sampleRate = c.SampleRate
		cfg.masterVolume = c.MasterVolume
		cfg.bpm = c.BPM
		cfg.lookahead = time.Duration(c.LookaheadMs) * time.Millisecond
		cfg.interval = time.Duration(c.TickIntervalMs) * time.Millisecond
		cfg.maxHold = c.MaxHeldVoiceSeconds
		cfg.effects = c.Effects
	}
}

// Engine is the live instrument: one audio clock with its effects chain,
// the voices played from the keyboard or MIDI, and the step scheduler.
type Engine struct {
	log      *slog.Logger
	ctx      *render.Context
	chain    *effects.Chain
	analyser *analysis.Analyser
	voices   *voice.Manager
	sched    *sequencer.Scheduler
	backend  Backend

	mu     sync.Mutex
	volume float64
	closed bool
}

// NewEngine builds the live context, effects chain and scheduler and opens
// the backend. The output stays suspended until Start or NoteOn.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	ctx := render.NewContext(float64(cfg.sampleRate), 0)
	chain, err := effects.Build(ctx, cfg.effects)
	if err != nil {
		return nil, fmt.Errorf("effects: %w", err)
	}
	ctx.SetProcessor(chain)
	an, err := analysis.New()
	if err != nil {
		return nil, err
	}
	ctx.SetTap(an.Tap)
	vol := clamp01(cfg.masterVolume)
	ctx.Master().SetValueAtTime(vol, 0)

	e := &Engine{
		log:      cfg.logger,
		ctx:      ctx,
		chain:    chain,
		analyser: an,
		volume:   vol,
	}
	if cfg.backend == nil {
		return nil, fmt.Errorf("%w: no backend", ErrBackendUnavailable)
	}
	b, err := cfg.backend(cfg.sampleRate, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	e.backend = b
	e.voices = voice.NewManager(ctx, b.Resume,
		voice.WithMaxHold(cfg.maxHold),
		voice.WithLogger(cfg.logger),
	)
	e.sched = sequencer.New(ctx, sequencer.Options{
		Lookahead: cfg.lookahead,
		Interval:  cfg.interval,
		BPM:       cfg.bpm,
		Logger:    cfg.logger,
	})
	e.log.Info("engine ready", "sample_rate", cfg.sampleRate, "bpm", cfg.bpm)
	return e, nil
}

// Start resumes the output and starts the transport, calling fn for every
// step. A failing fn stops the transport; see Err.
func (e *Engine) Start(fn TickFunc) error {
	if err := e.resume(); err != nil {
		return err
	}
	return e.sched.Start(context.Background(), fn)
}

// Stop halts the transport. Sounds already scheduled play out.
func (e *Engine) Stop() {
	e.sched.Stop()
}

// Playing reports whether the transport is running.
func (e *Engine) Playing() bool { return e.sched.Running() }

// Err returns the failure that stopped the transport, if any.
func (e *Engine) Err() error { return e.sched.Err() }

// SetBPM changes the tempo from the next step on.
func (e *Engine) SetBPM(bpm float64) { e.sched.SetBPM(bpm) }

// BPM is the current tempo.
func (e *Engine) BPM() float64 { return e.sched.BPM() }

// NextStepTime is the audio clock time of the next step, while playing.
func (e *Engine) NextStepTime() (float64, bool) { return e.sched.NextStepTime() }

// SetMasterVolume glides the master gain to v, clamped to [0, 1].
func (e *Engine) SetMasterVolume(v float64) {
	v = clamp01(v)
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	e.ctx.Master().SetTargetAtTime(v, e.ctx.CurrentTime(), masterTimeConstant)
}

// MasterVolume is the target master gain.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// CurrentTime is the audio clock in seconds.
func (e *Engine) CurrentTime() float64 { return e.ctx.CurrentTime() }

// SampleRate is the live output rate in Hz.
func (e *Engine) SampleRate() int { return int(e.ctx.SampleRate()) }

func (e *Engine) FrequencyBinCount() int { return e.analyser.FrequencyBinCount() }

// FrequencyData writes the current output spectrum as bytes into dst.
func (e *Engine) FrequencyData(dst []byte) int { return e.analyser.ByteFrequencyData(dst) }

// FloatFrequencyData writes the current output spectrum in dB into dst.
func (e *Engine) FloatFrequencyData(dst []float32) int { return e.analyser.FloatFrequencyData(dst) }

// PlayInstrument schedules one sound of inst at clock time at. It reports
// false when inst cannot sound.
func (e *Engine) PlayInstrument(inst *Instrument, at, velocity float64, note int) bool {
	return voice.Play(e.ctx, inst, at, velocity, note, render.Output{}) != nil
}

// PlayStep schedules every audible step of the pattern that tick lands on.
// An unknown pattern schedules nothing.
func (e *Engine) PlayStep(lib *Library, patternID string, tick int, at float64) []Trigger {
	p, ok := lib.Pattern(patternID)
	if !ok {
		e.log.Debug("unknown pattern", "pattern", patternID)
		return nil
	}
	return sequencer.TriggerTick(e.ctx, p, lib.Instrument, tick, at, e.log)
}

// PatternTicker returns a TickFunc that plays patternID from lib and
// follows its tempo.
func (e *Engine) PatternTicker(lib *Library, patternID string) TickFunc {
	return func(tick int, at float64) error {
		if p, ok := lib.Pattern(patternID); ok && p.BPM != e.sched.BPM() {
			e.sched.SetBPM(p.BPM)
		}
		e.PlayStep(lib, patternID, tick, at)
		return nil
	}
}

// NoteOn starts note (velocity 1..127) on inst now. A nil inst only
// resumes the output.
func (e *Engine) NoteOn(inst *Instrument, note, velocity int) error {
	if err := e.voices.NoteOn(inst, note, velocity); err != nil {
		if errors.Is(err, voice.ErrResume) {
			return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return err
	}
	return nil
}

// NoteOff releases note. It reports false when nothing was held on note.
func (e *Engine) NoteOff(note int) bool {
	_, ok := e.voices.NoteOff(note)
	return ok
}

// PitchBend sets inst's bend in [-1, 1] and retunes its held voices.
func (e *Engine) PitchBend(inst *Instrument, bend float64) {
	e.voices.PitchBend(inst, bend)
}

// ControlChange applies CC 74 (cutoff) or CC 1 (LFO depth) to inst.
func (e *Engine) ControlChange(inst *Instrument, cc, value int) {
	e.voices.ControlChange(inst, cc, value)
}

// Suspend stops the transport and pauses the output. The next Start or
// NoteOn resumes it.
func (e *Engine) Suspend() error {
	e.sched.Stop()
	return e.backend.Suspend()
}

// Suspended reports whether the output is paused.
func (e *Engine) Suspended() bool { return e.backend.Suspended() }

// ActiveNotes lists the notes currently held.
func (e *Engine) ActiveNotes() []int { return e.voices.ActiveNotes() }

// Close stops the transport, releases held notes and closes the output.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.sched.Stop()
	e.voices.ReleaseAll()
	if e.chain.Failed() {
		e.log.Warn("reverb stopped after a convolution error")
	}
	return e.backend.Close()
}

func (e *Engine) resume() error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: engine closed", ErrBackendUnavailable)
	}
	if err := e.backend.Resume(); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
