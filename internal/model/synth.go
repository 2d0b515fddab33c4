package model

import (
	"sync"

	"github.com/cbegin/stepsynth-go/internal/modmath"
	"github.com/cbegin/stepsynth-go/internal/osc"
)

// SynthParams is a point-in-time copy of a synth instrument's settings.
type SynthParams struct {
	Waveform        osc.Waveform
	Attack          float64 // [0,1], x2 seconds
	Decay           float64 // [0,1], x2 seconds
	Sustain         float64 // [0,1] of peak
	Release         float64 // [0,1], x4 seconds
	FilterCutoff    float64 // [0,1]
	FilterResonance float64 // [0,1]
	LFORate         float64 // Hz, [0,20]
	LFODepth        float64 // [0,1]
	PitchBend       float64 // [-1,1]
	PitchBendRange  float64 // semitones, [0,12]
}

func DefaultSynthParams() SynthParams {
	return SynthParams{
		Waveform:        osc.Sawtooth,
		Attack:          0.05,
		Decay:           0.2,
		Sustain:         0.4,
		Release:         0.3,
		FilterCutoff:    0.5,
		FilterResonance: 0.2,
		LFORate:         5,
		LFODepth:        0.1,
		PitchBend:       0,
		PitchBendRange:  2,
	}
}

// ADSR returns the envelope controls.
func (p SynthParams) ADSR() modmath.ADSR {
	return modmath.ADSR{Attack: p.Attack, Decay: p.Decay, Sustain: p.Sustain, Release: p.Release}
}

func (p SynthParams) BendFactor() float64 {
	return modmath.BendFactor(p.PitchBend, p.PitchBendRange)
}

func (p *SynthParams) clamp() {
	p.Attack = clamp(p.Attack, 0, 1)
	p.Decay = clamp(p.Decay, 0, 1)
	p.Sustain = clamp(p.Sustain, 0, 1)
	p.Release = clamp(p.Release, 0, 1)
	p.FilterCutoff = clamp(p.FilterCutoff, 0, 1)
	p.FilterResonance = clamp(p.FilterResonance, 0, 1)
	p.LFORate = clamp(p.LFORate, 0, 20)
	p.LFODepth = clamp(p.LFODepth, 0, 1)
	p.PitchBend = clamp(p.PitchBend, -1, 1)
	p.PitchBendRange = clamp(p.PitchBendRange, 0, 12)
	if p.Waveform < osc.Sine || p.Waveform > osc.Triangle {
		p.Waveform = osc.Sawtooth
	}
}

// SynthConfig holds a synth instrument's settings. Triggers read a Snapshot;
// performance controls write through the setters while voices play.
type SynthConfig struct {
	mu sync.RWMutex
	p  SynthParams
}

func NewSynthConfig(p SynthParams) *SynthConfig {
	p.clamp()
	return &SynthConfig{p: p}
}

func (c *SynthConfig) Snapshot() SynthParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.p
}

func (c *SynthConfig) SetPitchBend(v float64) {
	c.mu.Lock()
	c.p.PitchBend = clamp(v, -1, 1)
	c.mu.Unlock()
}

func (c *SynthConfig) SetFilterCutoff(v float64) {
	c.mu.Lock()
	c.p.FilterCutoff = clamp(v, 0, 1)
	c.mu.Unlock()
}

func (c *SynthConfig) SetLFODepth(v float64) {
	c.mu.Lock()
	c.p.LFODepth = clamp(v, 0, 1)
	c.mu.Unlock()
}

// Update applies fn to the settings and clamps the result.
func (c *SynthConfig) Update(fn func(*SynthParams)) {
	c.mu.Lock()
	fn(&c.p)
	c.p.clamp()
	c.mu.Unlock()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
