// Package model defines instruments, tracks and patterns and the library
// that owns them.
package model

import (
	"errors"
	"fmt"

	"github.com/go-audio/audio"

	"github.com/cbegin/stepsynth-go/internal/modmath"
)

// MaxSteps is the fixed capacity of a track's step array.
const MaxSteps = 32

var (
	ErrUnknownPattern    = errors.New("unknown pattern")
	ErrUnknownTrack      = errors.New("unknown track")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrInvalidStepCount  = errors.New("step count must be 8, 16 or 32")
	ErrStepOutOfRange    = errors.New("step index out of range")
	ErrInvalidBPM        = errors.New("bpm must be positive")
)

type Kind int

const (
	KindDrum Kind = iota
	KindSynth
	KindSample
)

func (k Kind) String() string {
	switch k {
	case KindDrum:
		return "drum"
	case KindSynth:
		return "synth"
	case KindSample:
		return "sample"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Instrument is immutable once added to a library, except for the settings
// held by Synth.
type Instrument struct {
	ID     string
	Name   string
	Kind   Kind
	Color  string
	Synth  *SynthConfig         // KindSynth only
	Sample *audio.Float32Buffer // KindSample only
}

type Step struct {
	Active   bool
	Velocity float64
	Note     int // 0 reads as modmath.DefaultNote
}

func (s Step) NoteOrDefault() int {
	if s.Note == 0 {
		return modmath.DefaultNote
	}
	return s.Note
}

type Track struct {
	ID           string
	InstrumentID string
	Steps        [MaxSteps]Step
	StepCount    int
	Volume       float64
	Muted        bool
	Soloed       bool
	DelaySend    float64
	ReverbSend   float64
}

// NewTrack returns an empty 16-step track at volume 0.7.
func NewTrack(id, instrumentID string) *Track {
	t := &Track{
		ID:           id,
		InstrumentID: instrumentID,
		StepCount:    16,
		Volume:       0.7,
	}
	for i := range t.Steps {
		t.Steps[i] = Step{Velocity: 0.8, Note: modmath.DefaultNote}
	}
	return t
}

// StepAt returns the step a global tick lands on. Step counts beyond
// MaxSteps wrap at MaxSteps.
func (t *Track) StepAt(tick int) Step {
	return t.Steps[modmath.EffectiveStep(tick, min(t.StepCount, MaxSteps))]
}

func (t *Track) Audible(anySoloed bool) bool {
	return modmath.Audible(t.Muted, t.Soloed, anySoloed)
}

func ValidStepCount(n int) bool {
	return n == 8 || n == 16 || n == 32
}

type Pattern struct {
	ID     string
	Name   string
	BPM    float64
	Tracks []*Track
}

func (p *Pattern) AnySoloed() bool {
	for _, t := range p.Tracks {
		if t.Soloed {
			return true
		}
	}
	return false
}

// MaxStepCount is the longest step count among the tracks, at most
// MaxSteps, and 16 when empty.
func (p *Pattern) MaxStepCount() int {
	n := 0
	for _, t := range p.Tracks {
		if c := min(t.StepCount, MaxSteps); c > n {
			n = c
		}
	}
	if n == 0 {
		n = 16
	}
	return n
}

func (p *Pattern) Track(id string) *Track {
	for _, t := range p.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p *Pattern) Clone() *Pattern {
	c := *p
	c.Tracks = make([]*Track, len(p.Tracks))
	for i, t := range p.Tracks {
		tc := *t
		c.Tracks[i] = &tc
	}
	return &c
}
