// Package modmath holds the pure arithmetic shared by the live and offline
// voice paths: pitch, filter mapping, envelope shape and step indexing.
package modmath

import "math"

const (
	// DefaultNote is the MIDI note used when a step carries none.
	DefaultNote = 60

	// PeakGain scales velocity into the envelope peak.
	PeakGain = 0.3

	CutoffScaleHz   = 5000.0
	CutoffFloorHz   = 50.0
	ResonanceScaleQ = 20.0
	LFODepthScaleHz = 10.0

	// ReleaseHold is the delay between the end of decay and the start of the
	// fire-and-forget release.
	ReleaseHold = 0.1
	// Tail is added to a fire-and-forget voice's lifetime after its release.
	Tail = 0.5
	// ReleaseFloor is the target of the note-off exponential ramp.
	ReleaseFloor = 0.001
	// ReleaseStopPad keeps a released oscillator alive past its ramp.
	ReleaseStopPad = 0.1
)

// NoteFrequency returns the equal-tempered frequency of a MIDI note, A4=440.
func NoteFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// BendFactor converts a normalized bend in [-1,1] and a range in semitones
// into a frequency multiplier.
func BendFactor(bend, rangeSemitones float64) float64 {
	return math.Pow(2, bend*rangeSemitones/12)
}

func CutoffHz(cutoff float64) float64 { return cutoff*CutoffScaleHz + CutoffFloorHz }

func ResonanceQ(resonance float64) float64 { return resonance * ResonanceScaleQ }

func LFODepthHz(depth float64) float64 { return depth * LFODepthScaleHz }

// SecondsPerStep is the length of one sixteenth note at bpm.
func SecondsPerStep(bpm float64) float64 {
	return 60 / bpm / 4
}

// EffectiveStep maps a global tick onto a track of stepCount steps.
func EffectiveStep(tick, stepCount int) int {
	if stepCount <= 0 {
		return 0
	}
	s := tick % stepCount
	if s < 0 {
		s += stepCount
	}
	return s
}

// Audible applies the mute/solo rule: while any track is soloed only soloed
// tracks sound, otherwise every unmuted track does.
func Audible(muted, soloed, anySoloed bool) bool {
	if anySoloed {
		return soloed
	}
	return !muted
}

// ADSR holds the normalized envelope controls, each in [0,1].
type ADSR struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Envelope is an ADSR resolved into seconds and absolute levels.
type Envelope struct {
	Peak    float64
	Attack  float64
	Decay   float64
	Sustain float64 // absolute level, Peak*sustain
	Release float64 // time constant / ramp length in seconds
}

func NewEnvelope(velocity float64, p ADSR) Envelope {
	peak := velocity * PeakGain
	return Envelope{
		Peak:    peak,
		Attack:  p.Attack * 2,
		Decay:   p.Decay * 2,
		Sustain: peak * p.Sustain,
		Release: p.Release * 4,
	}
}

// HeldAt is the envelope value t seconds after trigger while the note is held.
func (e Envelope) HeldAt(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < e.Attack:
		return e.Peak * t / e.Attack
	case t < e.Attack+e.Decay:
		return e.Peak + (e.Sustain-e.Peak)*(t-e.Attack)/e.Decay
	default:
		return e.Sustain
	}
}

// ReleaseStart is the offset at which a fire-and-forget voice starts decaying.
func (e Envelope) ReleaseStart() float64 {
	return e.Attack + e.Decay + ReleaseHold
}

// At is the fire-and-forget envelope value t seconds after trigger.
func (e Envelope) At(t float64) float64 {
	rs := e.ReleaseStart()
	if t < rs {
		return e.HeldAt(t)
	}
	if e.Release <= 0 {
		return 0
	}
	return e.Sustain * math.Exp(-(t-rs)/e.Release)
}

// Lifetime is how long a fire-and-forget voice runs before it is stopped.
func (e Envelope) Lifetime() float64 {
	return e.Attack + e.Decay + e.Release + Tail
}
