// Package voice renders instruments into a render.Context: synth voices,
// the built-in drums and sample playback, plus the manager for held MIDI
// notes.
package voice

import (
	"math"
	"sync"

	"github.com/cbegin/stepsynth-go/internal/automation"
	"github.com/cbegin/stepsynth-go/internal/lfo"
	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/modmath"
	"github.com/cbegin/stepsynth-go/internal/osc"
	"github.com/cbegin/stepsynth-go/internal/render"
)

const (
	// GlideTimeConstant smooths bend and cutoff changes on sounding voices.
	GlideTimeConstant = 0.05
	// KillFade is the fade applied when a voice is cut off by a retrigger.
	KillFade = 0.005
)

// Synth is one oscillator -> lowpass -> gain voice with sine vibrato.
type Synth struct {
	instrumentID string
	rate         float64
	start        float64
	env          modmath.Envelope
	baseFreq     float64
	q            float64

	osc    osc.Oscillator
	filter osc.Lowpass
	vib    *lfo.LFO

	freq   *automation.Param
	cutoff *automation.Param
	gain   *automation.Param
	out    render.Output

	mu   sync.Mutex
	stop float64

	fbuf, cbuf, gbuf []float64
}

func newSynth(rate float64, instrumentID string, p model.SynthParams, at, velocity float64, note int, out render.Output) *Synth {
	env := modmath.NewEnvelope(velocity, p.ADSR())
	base := modmath.NoteFrequency(note)
	s := &Synth{
		instrumentID: instrumentID,
		rate:         rate,
		start:        at,
		env:          env,
		baseFreq:     base,
		q:            modmath.ResonanceQ(p.FilterResonance),
		osc:          osc.Oscillator{Wave: p.Waveform},
		vib:          lfo.New(modmath.LFODepthHz(p.LFODepth), p.LFORate),
		freq:         automation.New(base * p.BendFactor()),
		cutoff:       automation.New(modmath.CutoffHz(p.FilterCutoff)),
		gain:         automation.New(0),
		out:          out,
		stop:         math.Inf(1),
		fbuf:         make([]float64, render.Quantum),
		cbuf:         make([]float64, render.Quantum),
		gbuf:         make([]float64, render.Quantum),
	}
	s.gain.SetValueAtTime(0, at)
	s.gain.LinearRampToValueAtTime(env.Peak, at+env.Attack)
	s.gain.LinearRampToValueAtTime(env.Sustain, at+env.Attack+env.Decay)
	return s
}

// NewOneShot returns a synth voice that plays its full envelope and stops
// by itself.
func NewOneShot(rate float64, instrumentID string, p model.SynthParams, at, velocity float64, note int, out render.Output) *Synth {
	s := newSynth(rate, instrumentID, p, at, velocity, note, out)
	s.gain.SetTargetAtTime(0, at+s.env.ReleaseStart(), s.env.Release)
	s.stop = at + s.env.Lifetime()
	return s
}

// NewHeld returns a synth voice that sustains until Release. If never
// released it fades out over KillFade and stops maxHold seconds after at,
// even when the cap lands inside the attack or decay.
func NewHeld(rate float64, instrumentID string, p model.SynthParams, at, velocity float64, note int, maxHold float64) *Synth {
	s := newSynth(rate, instrumentID, p, at, velocity, note, render.Output{})
	if maxHold > 0 {
		end := at + maxHold
		fadeAt := max(at, end-KillFade)
		cur := s.gain.ValueAt(fadeAt)
		s.gain.CancelScheduledValues(fadeAt)
		s.gain.LinearRampToValueAtTime(cur, fadeAt)
		s.gain.LinearRampToValueAtTime(0, end)
		s.stop = end
	}
	return s
}

func (s *Synth) InstrumentID() string { return s.instrumentID }
func (s *Synth) BaseFreq() float64 { return s.baseFreq }
func (s *Synth) Envelope() modmath.Envelope {
	return s.env
}

// StopTime is the time the oscillator stops, +Inf while held.
func (s *Synth) StopTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

func (s *Synth) setStop(t float64) {
	s.mu.Lock()
	s.stop = t
	s.mu.Unlock()
}

// Gain exposes the gain automation.
func (s *Synth) Gain() *automation.Param { return s.gain }

// Release starts the note-off ramp at now and returns when it ends.
func (s *Synth) Release(now float64) float64 {
	cur := s.gain.ValueAt(now)
	s.gain.CancelScheduledValues(now)
	s.gain.SetValueAtTime(cur, now)
	end := now + s.env.Release
	s.gain.ExponentialRampToValueAtTime(modmath.ReleaseFloor, end)
	s.setStop(end + modmath.ReleaseStopPad)
	return end
}

// Kill fades the voice out over KillFade and stops it.
func (s *Synth) Kill(now float64) {
	cur := s.gain.ValueAt(now)
	s.gain.CancelScheduledValues(now)
	s.gain.SetValueAtTime(cur, now)
	s.gain.LinearRampToValueAtTime(0, now+KillFade)
	s.setStop(now + KillFade)
}

// Retune glides the oscillator to freq.
func (s *Synth) Retune(freq, now float64) {
	s.freq.SetTargetAtTime(freq, now, GlideTimeConstant)
}

// SetCutoff glides the filter to hz.
func (s *Synth) SetCutoff(hz, now float64) {
	s.cutoff.SetTargetAtTime(hz, now, GlideTimeConstant)
}

func (s *Synth) Render(b *render.Bus) {
	if b.End() <= s.start {
		return
	}
	stop := s.StopTime()
	dt := 1 / b.Rate
	t0 := b.Time(0)
	s.freq.Fill(s.fbuf, t0, dt)
	s.cutoff.Fill(s.cbuf, t0, dt)
	s.gain.Fill(s.gbuf, t0, dt)
	for i := 0; i < render.Quantum; i++ {
		t := b.Time(i)
		if t < s.start {
			continue
		}
		if t >= stop {
			break
		}
		f := s.fbuf[i] + s.vib.Sample(s.rate)
		x := s.osc.Next(f, s.rate)
		s.filter.Set(s.cbuf[i], s.q, s.rate)
		y := float32(s.filter.Process(x) * s.gbuf[i])
		b.Add(i, y, y, s.out)
	}
}

func (s *Synth) Done(now float64) bool {
	return now >= s.StopTime()
}
