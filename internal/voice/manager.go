package voice

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/modmath"
	"github.com/cbegin/stepsynth-go/internal/render"
)

// DefaultMaxHold caps how long a held note sounds without a note-off.
const DefaultMaxHold = 30.0

const (
	ccModWheel = 1
	ccCutoff   = 74
)

// ErrResume wraps a failure to resume the audio output before a note-on.
var ErrResume = errors.New("voice: resume audio output")

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithMaxHold(seconds float64) ManagerOption {
	return func(m *Manager) { m.maxHold = seconds }
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// Manager tracks the synth voices started by live note-ons, one per note.
type Manager struct {
	ctx     *render.Context
	resume  func() error
	maxHold float64
	log     *slog.Logger

	mu     sync.Mutex
	voices map[int]*Synth
}

// NewManager returns a manager that plays into ctx. resume is called before
// each note-on so the output is running; it may be nil.
func NewManager(ctx *render.Context, resume func() error, opts ...ManagerOption) *Manager {
	m := &Manager{
		ctx:     ctx,
		resume:  resume,
		maxHold: DefaultMaxHold,
		log:     slog.New(slog.DiscardHandler),
		voices:  make(map[int]*Synth),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NoteOn starts note on inst at velocity 1..127. Synths get a held voice
// that replaces any voice already on the note; drums and samples play once.
func (m *Manager) NoteOn(inst *model.Instrument, note, velocity int) error {
	if m.resume != nil {
		if err := m.resume(); err != nil {
			return errors.Join(ErrResume, err)
		}
	}
	if inst == nil {
		return nil
	}
	now := m.ctx.CurrentTime()
	vol := float64(velocity) / 127

	if inst.Kind != model.KindSynth || inst.Synth == nil {
		Play(m.ctx, inst, now, vol, note, render.Output{})
		return nil
	}

	v := NewHeld(m.ctx.SampleRate(), inst.ID, inst.Synth.Snapshot(), now, vol, note, m.maxHold)

	m.mu.Lock()
	m.pruneLocked(now)
	if old := m.voices[note]; old != nil {
		old.Kill(now)
		m.log.Debug("retrigger", "note", note, "instrument", old.InstrumentID())
	}
	m.voices[note] = v
	m.mu.Unlock()

	m.ctx.Add(v)
	return nil
}

// NoteOff releases the voice on note and returns when its ramp ends.
func (m *Manager) NoteOff(note int) (float64, bool) {
	m.mu.Lock()
	v := m.voices[note]
	delete(m.voices, note)
	m.mu.Unlock()
	if v == nil {
		return 0, false
	}
	return v.Release(m.ctx.CurrentTime()), true
}

// PitchBend stores bend on inst and retunes its sounding voices.
func (m *Manager) PitchBend(inst *model.Instrument, bend float64) {
	if inst == nil || inst.Kind != model.KindSynth || inst.Synth == nil {
		return
	}
	inst.Synth.SetPitchBend(bend)
	factor := inst.Synth.Snapshot().BendFactor()
	now := m.ctx.CurrentTime()
	for _, v := range m.voicesOf(inst.ID) {
		v.Retune(v.BaseFreq()*factor, now)
	}
}

// ControlChange handles CC 74 (cutoff, applied to sounding voices) and
// CC 1 (LFO depth, applied to later notes). Other controllers are ignored.
func (m *Manager) ControlChange(inst *model.Instrument, cc, value int) {
	if inst == nil || inst.Kind != model.KindSynth || inst.Synth == nil {
		return
	}
	norm := float64(value) / 127
	switch cc {
	case ccCutoff:
		inst.Synth.SetFilterCutoff(norm)
		hz := modmath.CutoffHz(inst.Synth.Snapshot().FilterCutoff)
		now := m.ctx.CurrentTime()
		for _, v := range m.voicesOf(inst.ID) {
			v.SetCutoff(hz, now)
		}
	case ccModWheel:
		inst.Synth.SetLFODepth(norm)
	default:
		m.log.Debug("ignored controller", "cc", cc, "value", value)
	}
}

func (m *Manager) voicesOf(instrumentID string) []*Synth {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Synth
	for _, v := range m.voices {
		if v.InstrumentID() == instrumentID {
			out = append(out, v)
		}
	}
	return out
}

// pruneLocked forgets voices that ran into their hold limit.
func (m *Manager) pruneLocked(now float64) {
	for note, v := range m.voices {
		if v.Done(now) {
			delete(m.voices, note)
		}
	}
}

// ActiveNotes lists the notes with a voice, in ascending order.
func (m *Manager) ActiveNotes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.ctx.CurrentTime())
	notes := make([]int, 0, len(m.voices))
	for n := range m.voices {
		notes = append(notes, n)
	}
	sort.Ints(notes)
	return notes
}

func (m *Manager) Len() int {
	return len(m.ActiveNotes())
}

// Voice returns the voice registered on note.
func (m *Manager) Voice(note int) *Synth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voices[note]
}

// ReleaseAll releases every held voice.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	voices := m.voices
	m.voices = make(map[int]*Synth)
	m.mu.Unlock()
	now := m.ctx.CurrentTime()
	for _, v := range voices {
		v.Release(now)
	}
}
