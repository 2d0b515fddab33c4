package stepsynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"

	"github.com/cbegin/stepsynth-go/internal/effects"
	"github.com/cbegin/stepsynth-go/internal/modmath"
	"github.com/cbegin/stepsynth-go/internal/render"
	"github.com/cbegin/stepsynth-go/internal/voice"
)

// RenderTail is the silence rendered after the last step so releases and
// effect tails ring out.
const RenderTail = 2.0

type RenderOption func(*renderConfig)

type renderConfig struct {
	sampleRate int
	seed       int64
	effects    effects.Config
	logger     *slog.Logger
	onTrigger  func(Trigger)
}

func defaultRenderConfig() renderConfig {
	return renderConfig{
		sampleRate: DefaultSampleRate,
		effects:    effects.DefaultConfig(),
	}
}

func WithRenderSampleRate(rate int) RenderOption {
	return func(cfg *renderConfig) {
		cfg.sampleRate = rate
	}
}

// WithRenderSeed fixes the noise and reverb impulse so repeated renders are
// identical. Zero means a fresh seed.
func WithRenderSeed(seed int64) RenderOption {
	return func(cfg *renderConfig) {
		cfg.seed = seed
	}
}

func WithRenderEffects(c EffectsConfig) RenderOption {
	return func(cfg *renderConfig) {
		cfg.effects = c
	}
}

func WithRenderLogger(l *slog.Logger) RenderOption {
	return func(cfg *renderConfig) {
		cfg.logger = l
	}
}

// WithTriggerHook is called for every step scheduled by the render.
func WithTriggerHook(fn func(Trigger)) RenderOption {
	return func(cfg *renderConfig) {
		cfg.onTrigger = fn
	}
}

// RenderPattern plays every active step of p once, from step 0 to each
// track's step count, into an isolated stereo context and returns the
// interleaved result. Muted tracks, and unsoloed tracks when any track is
// soloed, are skipped, as are tracks whose instrument lookup fails. Any
// failure is a *RenderError.
func RenderPattern(ctx context.Context, p *Pattern, lookup InstrumentLookup, opts ...RenderOption) (buf *audio.Float32Buffer, err error) {
	cfg := defaultRenderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	switch {
	case p == nil:
		return nil, renderError("schedule", ErrUnknownPattern)
	case lookup == nil:
		return nil, renderError("schedule", errors.New("no instrument lookup"))
	case p.BPM <= 0:
		return nil, renderError("schedule", ErrInvalidBPM)
	case cfg.sampleRate <= 0:
		return nil, renderError("schedule", fmt.Errorf("invalid sample rate %d", cfg.sampleRate))
	}
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = renderError("render", fmt.Errorf("panic: %v", r))
		}
	}()

	rate := float64(cfg.sampleRate)
	c := render.NewContext(rate, cfg.seed)
	fx := cfg.effects
	if fx.Seed == 0 {
		fx.Seed = cfg.seed
	}
	chain, err := effects.Build(c, fx)
	if err != nil {
		return nil, renderError("effects", err)
	}
	c.SetProcessor(chain)

	sps := modmath.SecondsPerStep(p.BPM)
	anySolo := p.AnySoloed()
	scheduled := 0
	for _, tr := range p.Tracks {
		if !tr.Audible(anySolo) {
			continue
		}
		inst := lookup(tr.InstrumentID)
		if inst == nil {
			cfg.logger.Debug("unknown instrument", "track", tr.ID, "instrument", tr.InstrumentID)
			continue
		}
		out := render.Output{DelaySend: float32(tr.DelaySend), ReverbSend: float32(tr.ReverbSend)}
		n := min(tr.StepCount, len(tr.Steps))
		for i := 0; i < n; i++ {
			s := tr.Steps[i]
			if !s.Active {
				continue
			}
			at := float64(i) * sps
			if voice.Play(c, inst, at, s.Velocity*tr.Volume, s.NoteOrDefault(), out) == nil {
				continue
			}
			scheduled++
			if cfg.onTrigger != nil {
				cfg.onTrigger(Trigger{TrackID: tr.ID, Step: i, At: at})
			}
		}
	}

	frames := int(rate * (float64(p.MaxStepCount())*sps + RenderTail))
	cfg.logger.Info("rendering pattern", "pattern", p.Name, "frames", frames, "steps", scheduled)
	left, right, err := c.Render(ctx, frames)
	if err != nil {
		return nil, renderError("render", err)
	}
	if chain.Failed() {
		return nil, renderError("effects", errors.New("reverb convolution failed"))
	}
	data := make([]float32, 2*frames)
	for i := range frames {
		data[2*i] = left[i]
		data[2*i+1] = right[i]
	}
	return &audio.Float32Buffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: cfg.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}, nil
}

// ExportWAV renders p and writes it to dir as "<pattern name>.wav". The file
// is written to a temporary name and renamed, so a failed export leaves no
// partial file. It returns the path written.
func ExportWAV(ctx context.Context, dir string, p *Pattern, lookup InstrumentLookup, opts ...RenderOption) (string, error) {
	buf, err := RenderPattern(ctx, p, lookup, opts...)
	if err != nil {
		return "", err
	}
	data, err := EncodeWAV(buf)
	if err != nil {
		return "", renderError("encode", err)
	}
	path := filepath.Join(dir, fileName(p.Name)+".wav")
	if err := writeFileAtomic(path, data); err != nil {
		return "", renderError("write", err)
	}
	return path, nil
}

func fileName(name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "pattern"
	}
	return name
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".stepsynth-*.wav")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
