// Package stepsynth is a drum machine and synthesizer engine: a lookahead
// step sequencer, subtractive synth voices, drum and sample one-shots, a
// send-effects chain, and an offline renderer that exports patterns to WAV.
package stepsynth

import (
	"github.com/cbegin/stepsynth-go/internal/effects"
	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/osc"
	"github.com/cbegin/stepsynth-go/internal/sequencer"
)

type (
	Instrument     = model.Instrument
	InstrumentKind = model.Kind
	Pattern        = model.Pattern
	Track          = model.Track
	Step           = model.Step
	Library        = model.Library
	SynthParams    = model.SynthParams
	SynthConfig    = model.SynthConfig
	Waveform       = osc.Waveform
	EffectsConfig  = effects.Config

	// InstrumentLookup resolves an instrument id. Library.Instrument is one.
	InstrumentLookup = sequencer.InstrumentLookup
	// TickFunc is called once per sequencer step with the audio clock time
	// the step should sound at.
	TickFunc = sequencer.TickFunc
	// Trigger records one step scheduled by Engine.PlayStep.
	Trigger = sequencer.Trigger
)

const (
	KindDrum   = model.KindDrum
	KindSynth  = model.KindSynth
	KindSample = model.KindSample

	Sine     = osc.Sine
	Square   = osc.Square
	Sawtooth = osc.Sawtooth
	Triangle = osc.Triangle
)

var (
	ErrUnknownPattern    = model.ErrUnknownPattern
	ErrUnknownTrack      = model.ErrUnknownTrack
	ErrUnknownInstrument = model.ErrUnknownInstrument
	ErrInvalidStepCount  = model.ErrInvalidStepCount
	ErrInvalidBPM        = model.ErrInvalidBPM
)

func NewLibrary() *Library { return model.NewLibrary() }

// DefaultLibrary returns the stock kit and two empty 120 bpm patterns.
func DefaultLibrary() *Library { return model.DefaultLibrary() }

func NewTrack(id, instrumentID string) *Track { return model.NewTrack(id, instrumentID) }

func DefaultSynthParams() SynthParams { return model.DefaultSynthParams() }

func NewSynthConfig(p SynthParams) *SynthConfig { return model.NewSynthConfig(p) }

func DefaultEffectsConfig() EffectsConfig { return effects.DefaultConfig() }
