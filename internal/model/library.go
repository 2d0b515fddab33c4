package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-audio/audio"

	"github.com/cbegin/stepsynth-go/internal/osc"
)

// Library is the set of instruments and patterns a session works with.
// Readers get copies of patterns, so a pattern handed to the sequencer is
// never mutated underneath it.
type Library struct {
	mu          sync.RWMutex
	instruments []*Instrument
	patterns    []*Pattern
	selected    string
	seq         int
}

func NewLibrary() *Library {
	return &Library{}
}

// DefaultLibrary returns the stock kit: three drums, a bass and a lead, and
// two empty patterns at 120 bpm with one track per instrument.
func DefaultLibrary() *Library {
	l := NewLibrary()
	bass := DefaultSynthParams()
	bass.Waveform = osc.Sawtooth
	bass.FilterCutoff = 0.3
	lead := DefaultSynthParams()
	lead.Waveform = osc.Square
	lead.FilterCutoff = 0.7
	for _, inst := range []*Instrument{
		{ID: "kick", Name: "LINN KICK", Kind: KindDrum, Color: "#ff00ff"},
		{ID: "snare", Name: "SIMMONS SNR", Kind: KindDrum, Color: "#00ffff"},
		{ID: "hihat", Name: "ITALO HH", Kind: KindDrum, Color: "#ffff00"},
		{ID: "bass", Name: "JUNO BASS", Kind: KindSynth, Color: "#ff8800", Synth: NewSynthConfig(bass)},
		{ID: "lead", Name: "DX7 LEAD", Kind: KindSynth, Color: "#ff0088", Synth: NewSynthConfig(lead)},
	} {
		l.instruments = append(l.instruments, inst)
	}
	for i, name := range []string{"VERSE A", "CHORUS"} {
		p := &Pattern{ID: fmt.Sprintf("p%d", i+1), Name: name, BPM: 120}
		for _, inst := range l.instruments {
			p.Tracks = append(p.Tracks, NewTrack(l.nextID("t"), inst.ID))
		}
		l.patterns = append(l.patterns, p)
	}
	l.selected = "bass"
	return l
}

func (l *Library) nextID(prefix string) string {
	l.seq++
	return fmt.Sprintf("%s%d", prefix, l.seq)
}

func (l *Library) AddInstrument(inst *Instrument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.instrumentLocked(inst.ID) != nil {
		return fmt.Errorf("instrument %q: %w", inst.ID, ErrDuplicateID)
	}
	l.instruments = append(l.instruments, inst)
	return nil
}

// AddSampleInstrument creates a sample instrument for buf, appends an empty
// track for it to every pattern and selects it.
func (l *Library) AddSampleInstrument(name string, buf *audio.Float32Buffer) *Instrument {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst := &Instrument{
		ID:     l.nextID("sample-"),
		Name:   strings.ToUpper(name),
		Kind:   KindSample,
		Color:  "#ffffff",
		Sample: buf,
	}
	l.instruments = append(l.instruments, inst)
	for _, p := range l.patterns {
		p.Tracks = append(p.Tracks, NewTrack(l.nextID("t"), inst.ID))
	}
	l.selected = inst.ID
	return inst
}

func (l *Library) Instrument(id string) *Instrument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.instrumentLocked(id)
}

func (l *Library) instrumentLocked(id string) *Instrument {
	for _, inst := range l.instruments {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

func (l *Library) Instruments() []*Instrument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Instrument(nil), l.instruments...)
}

// RemoveInstrument deletes the instrument and every track that uses it. A
// removed selection falls back to the first remaining instrument, or none.
func (l *Library) RemoveInstrument(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := -1
	for i, inst := range l.instruments {
		if inst.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	l.instruments = append(l.instruments[:idx], l.instruments[idx+1:]...)
	for _, p := range l.patterns {
		kept := p.Tracks[:0]
		for _, t := range p.Tracks {
			if t.InstrumentID != id {
				kept = append(kept, t)
			}
		}
		clearTail(p.Tracks, len(kept))
		p.Tracks = kept
	}
	if l.selected == id {
		l.selected = ""
		if len(l.instruments) > 0 {
			l.selected = l.instruments[0].ID
		}
	}
	return true
}

func clearTail(ts []*Track, n int) {
	for i := n; i < len(ts); i++ {
		ts[i] = nil
	}
}

func (l *Library) Select(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.instrumentLocked(id) == nil {
		return fmt.Errorf("select %q: %w", id, ErrUnknownInstrument)
	}
	l.selected = id
	return nil
}

// Selected returns the selected instrument, or nil.
func (l *Library) Selected() *Instrument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.instrumentLocked(l.selected)
}

func (l *Library) SelectedID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected
}

func (l *Library) AddPattern(p *Pattern) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.ID == "" {
		p.ID = l.nextID("p")
	}
	for _, q := range l.patterns {
		if q.ID == p.ID {
			return fmt.Errorf("pattern %q: %w", p.ID, ErrDuplicateID)
		}
	}
	if p.BPM <= 0 {
		return fmt.Errorf("pattern %q: %w", p.ID, ErrInvalidBPM)
	}
	for _, t := range p.Tracks {
		if !ValidStepCount(t.StepCount) {
			return fmt.Errorf("pattern %q track %q: %w", p.ID, t.ID, ErrInvalidStepCount)
		}
	}
	l.patterns = append(l.patterns, p.Clone())
	return nil
}

// Pattern returns a copy of the pattern with the given id.
func (l *Library) Pattern(id string) (*Pattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.patternLocked(id)
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

func (l *Library) PatternByName(name string) (*Pattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.patterns {
		if strings.EqualFold(p.Name, name) {
			return p.Clone(), true
		}
	}
	return nil, false
}

func (l *Library) Patterns() []*Pattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Pattern, len(l.patterns))
	for i, p := range l.patterns {
		out[i] = p.Clone()
	}
	return out
}

func (l *Library) patternLocked(id string) *Pattern {
	for _, p := range l.patterns {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AddTrack appends an empty track for instrumentID to a pattern.
func (l *Library) AddTrack(patternID, instrumentID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.patternLocked(patternID)
	if p == nil {
		return "", fmt.Errorf("add track to %q: %w", patternID, ErrUnknownPattern)
	}
	if l.instrumentLocked(instrumentID) == nil {
		return "", fmt.Errorf("add track for %q: %w", instrumentID, ErrUnknownInstrument)
	}
	t := NewTrack(l.nextID("t"), instrumentID)
	p.Tracks = append(p.Tracks, t)
	return t.ID, nil
}

// RemoveTrack removes the track from every pattern that holds it.
func (l *Library) RemoveTrack(trackID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	found := false
	for _, p := range l.patterns {
		kept := p.Tracks[:0]
		for _, t := range p.Tracks {
			if t.ID == trackID {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		clearTail(p.Tracks, len(kept))
		p.Tracks = kept
	}
	return found
}

func (l *Library) editTrack(patternID, trackID string, fn func(*Track) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.patternLocked(patternID)
	if p == nil {
		return fmt.Errorf("pattern %q: %w", patternID, ErrUnknownPattern)
	}
	t := p.Track(trackID)
	if t == nil {
		return fmt.Errorf("track %q: %w", trackID, ErrUnknownTrack)
	}
	return fn(t)
}

func (l *Library) editStep(patternID, trackID string, step int, fn func(*Step)) error {
	return l.editTrack(patternID, trackID, func(t *Track) error {
		if step < 0 || step >= MaxSteps {
			return fmt.Errorf("step %d: %w", step, ErrStepOutOfRange)
		}
		fn(&t.Steps[step])
		return nil
	})
}

func (l *Library) ToggleStep(patternID, trackID string, step int) error {
	return l.editStep(patternID, trackID, step, func(s *Step) { s.Active = !s.Active })
}

func (l *Library) SetStep(patternID, trackID string, step int, s Step) error {
	return l.editStep(patternID, trackID, step, func(dst *Step) {
		s.Velocity = clamp(s.Velocity, 0, 1)
		*dst = s
	})
}

func (l *Library) SetStepNote(patternID, trackID string, step, note int) error {
	return l.editStep(patternID, trackID, step, func(s *Step) {
		s.Note = int(clamp(float64(note), 0, 127))
	})
}

func (l *Library) SetStepVelocity(patternID, trackID string, step int, v float64) error {
	return l.editStep(patternID, trackID, step, func(s *Step) { s.Velocity = clamp(v, 0, 1) })
}

func (l *Library) SetTrackVolume(patternID, trackID string, v float64) error {
	return l.editTrack(patternID, trackID, func(t *Track) error {
		t.Volume = clamp(v, 0, 1)
		return nil
	})
}

func (l *Library) SetTrackSends(patternID, trackID string, delay, reverb float64) error {
	return l.editTrack(patternID, trackID, func(t *Track) error {
		t.DelaySend = clamp(delay, 0, 1)
		t.ReverbSend = clamp(reverb, 0, 1)
		return nil
	})
}

func (l *Library) ToggleMute(patternID, trackID string) error {
	return l.editTrack(patternID, trackID, func(t *Track) error {
		t.Muted = !t.Muted
		return nil
	})
}

func (l *Library) ToggleSolo(patternID, trackID string) error {
	return l.editTrack(patternID, trackID, func(t *Track) error {
		t.Soloed = !t.Soloed
		return nil
	})
}

func (l *Library) SetStepCount(patternID, trackID string, n int) error {
	if !ValidStepCount(n) {
		return fmt.Errorf("step count %d: %w", n, ErrInvalidStepCount)
	}
	return l.editTrack(patternID, trackID, func(t *Track) error {
		t.StepCount = n
		return nil
	})
}

func (l *Library) SetBPM(patternID string, bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("bpm %v: %w", bpm, ErrInvalidBPM)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.patternLocked(patternID)
	if p == nil {
		return fmt.Errorf("pattern %q: %w", patternID, ErrUnknownPattern)
	}
	p.BPM = bpm
	return nil
}
