package voice

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-audio/audio"

	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/modmath"
	"github.com/cbegin/stepsynth-go/internal/render"
)

const rate = 8000.0

func synthInstrument(id string) *model.Instrument {
	return &model.Instrument{ID: id, Kind: model.KindSynth, Synth: model.NewSynthConfig(model.DefaultSynthParams())}
}

func energy(xs []float32) float64 {
	var e float64
	for _, x := range xs {
		e += float64(x) * float64(x)
	}
	return e
}

func TestOneShotEnvelopeMatchesMath(t *testing.T) {
	p := model.DefaultSynthParams()
	at := 0.25
	s := NewOneShot(rate, "bass", p, at, 0.8, 48, render.Output{})
	env := modmath.NewEnvelope(0.8, p.ADSR())
	for _, dt := range []float64{0, 0.03, 0.1, 0.3, 0.5, 0.55, 0.7, 1.5, 2.0} {
		got := s.Gain().ValueAt(at + dt)
		if want := env.At(dt); math.Abs(got-want) > 1e-9 {
			t.Fatalf("gain at +%v: got %v want %v", dt, got, want)
		}
	}
	if want := at + env.Lifetime(); math.Abs(s.StopTime()-want) > 1e-12 {
		t.Fatalf("stop: got %v want %v", s.StopTime(), want)
	}
}

func TestOneShotRendersAndFinishes(t *testing.T) {
	c := render.NewContext(rate, 1)
	inst := synthInstrument("bass")
	src := Play(c, inst, 0, 1, 60, render.Output{})
	if src == nil {
		t.Fatal("expected a source")
	}
	l, r, err := c.Render(context.Background(), int(rate*3))
	if err != nil {
		t.Fatal(err)
	}
	if energy(l[:int(rate*0.5)]) == 0 {
		t.Fatal("expected sound during the envelope")
	}
	for i := range l {
		if l[i] != r[i] {
			t.Fatalf("mono voice should feed both channels equally at %d", i)
		}
	}
	if c.Sources() != 0 {
		t.Fatal("voice should be removed after its lifetime")
	}
}

func TestDrumRecipes(t *testing.T) {
	tests := []struct {
		id     string
		length float64
	}{
		{"kick", 0.5},
		{"snare", 0.5},
		{"hihat", 0.1},
		{"tom", 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			const sr = 44100.0
			c := render.NewContext(sr, 1)
			inst := &model.Instrument{ID: tt.id, Kind: model.KindDrum}
			Play(c, inst, 0, 1, 60, render.Output{})
			l, _, err := c.Render(context.Background(), int(sr))
			if err != nil {
				t.Fatal(err)
			}
			end := int(tt.length * sr)
			if energy(l[:end]) == 0 {
				t.Fatal("expected sound")
			}
			if e := energy(l[end+render.Quantum:]); e != 0 {
				t.Fatalf("expected silence after %vs, energy %v", tt.length, e)
			}
		})
	}
}

func TestKickSweep(t *testing.T) {
	k := Kick(1, 0.9, render.Output{})
	if got := k.freq.ValueAt(1); got != 150 {
		t.Fatalf("start freq %v", got)
	}
	if got := k.freq.ValueAt(1.1); math.Abs(got-40) > 1e-9 {
		t.Fatalf("end freq %v", got)
	}
	if got := k.gain.ValueAt(1); got != 0.9 {
		t.Fatalf("start gain %v", got)
	}
	if got := k.gain.ValueAt(1.4); math.Abs(got-0.01) > 1e-9 {
		t.Fatalf("end gain %v", got)
	}
}

func TestClickLevel(t *testing.T) {
	k := Click(0, 0.5, render.Output{})
	if got := k.gain.ValueAt(0); got != 0.1 {
		t.Fatalf("click gain %v", got)
	}
}

func TestSampleMonoFeedsBothChannels(t *testing.T) {
	c := render.NewContext(rate, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: int(rate)},
		Data:   []float32{0.5, 0.5, 0.5, 0.5},
	}
	inst := &model.Instrument{ID: "s", Kind: model.KindSample, Sample: buf}
	Play(c, inst, 0, 0.5, 60, render.Output{})
	l, r, err := c.Render(context.Background(), 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if l[i] != 0.25 || r[i] != 0.25 {
			t.Fatalf("frame %d: %f/%f", i, l[i], r[i])
		}
	}
	if l[4] != 0 {
		t.Fatalf("sample should play once, frame 4 = %f", l[4])
	}
}

func TestPlaySkipsUnplayable(t *testing.T) {
	c := render.NewContext(rate, 1)
	for _, inst := range []*model.Instrument{
		nil,
		{ID: "x", Kind: model.KindSynth},
		{ID: "y", Kind: model.KindSample},
	} {
		if src := Play(c, inst, 0, 1, 60, render.Output{}); src != nil {
			t.Fatalf("expected nil source for %+v", inst)
		}
	}
}

func TestNoteOnOffRelease(t *testing.T) {
	c := render.NewContext(rate, 1)
	m := NewManager(c, nil)
	inst := synthInstrument("lead")
	if err := m.NoteOn(inst, 64, 127); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Render(context.Background(), int(rate)); err != nil {
		t.Fatal(err)
	}
	v := m.Voice(64)
	now := c.CurrentTime()
	end, ok := m.NoteOff(64)
	if !ok {
		t.Fatal("expected a voice to release")
	}
	release := inst.Synth.Snapshot().Release * 4
	if math.Abs(end-now-release) > 1e-12 {
		t.Fatalf("release end %v, want now+%v", end, release)
	}
	if got := v.Gain().ValueAt(end); got != modmath.ReleaseFloor {
		t.Fatalf("gain at release end: %v", got)
	}
	if math.Abs(v.StopTime()-(end+0.1)) > 1e-12 {
		t.Fatalf("stop %v, want %v", v.StopTime(), end+0.1)
	}
	if m.Len() != 0 {
		t.Fatal("entry should be removed")
	}
	if _, ok := m.NoteOff(64); ok {
		t.Fatal("second note-off should be a no-op")
	}
}

func TestRetriggerStopsPreviousVoice(t *testing.T) {
	c := render.NewContext(rate, 1)
	m := NewManager(c, nil)
	inst := synthInstrument("lead")
	if err := m.NoteOn(inst, 60, 100); err != nil {
		t.Fatal(err)
	}
	first := m.Voice(60)
	if _, _, err := c.Render(context.Background(), render.Quantum*4); err != nil {
		t.Fatal(err)
	}
	if err := m.NoteOn(inst, 60, 100); err != nil {
		t.Fatal(err)
	}
	now := c.CurrentTime()
	if math.Abs(first.StopTime()-(now+KillFade)) > 1e-12 {
		t.Fatalf("previous voice stop %v, want %v", first.StopTime(), now+KillFade)
	}
	if m.Voice(60) == first || m.Len() != 1 {
		t.Fatal("new voice should replace the old entry")
	}
	if _, _, err := c.Render(context.Background(), render.Quantum); err != nil {
		t.Fatal(err)
	}
	if c.Sources() != 1 {
		t.Fatalf("killed voice should be gone, %d sources", c.Sources())
	}
}

func TestHeldVoiceIsCapped(t *testing.T) {
	c := render.NewContext(rate, 1)
	m := NewManager(c, nil, WithMaxHold(1))
	if err := m.NoteOn(synthInstrument("lead"), 60, 100); err != nil {
		t.Fatal(err)
	}
	if got := m.Voice(60).StopTime(); got != 1 {
		t.Fatalf("stop %v", got)
	}
	if _, _, err := c.Render(context.Background(), int(rate*1.1)); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 || c.Sources() != 0 {
		t.Fatalf("capped voice still tracked: %d voices %d sources", m.Len(), c.Sources())
	}
}

func TestHeldCapFadesFromCurrentGain(t *testing.T) {
	p := model.DefaultSynthParams()
	env := modmath.NewEnvelope(0.8, p.ADSR())
	cases := []struct {
		name    string
		maxHold float64
	}{
		{"sustain", 1},
		{"inside attack", 0.05},
		{"inside decay", 0.3},
		{"shorter than fade", KillFade / 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := 0.5
			s := NewHeld(rate, "lead", p, at, 0.8, 60, tc.maxHold)
			end := at + tc.maxHold
			fadeAt := max(at, end-KillFade)
			for _, dt := range []float64{0, 0.3, 0.6, 0.9} {
				tt := at + (fadeAt-at)*dt
				if got, want := s.Gain().ValueAt(tt), env.HeldAt(tt-at); math.Abs(got-want) > 1e-9 {
					t.Fatalf("gain before fade at %v: got %v want %v", tt, got, want)
				}
			}
			start := env.HeldAt(fadeAt - at)
			if got := s.Gain().ValueAt(fadeAt); math.Abs(got-start) > 1e-9 {
				t.Fatalf("gain jumps at fade start: got %v want %v", got, start)
			}
			if got := s.Gain().ValueAt((fadeAt + end) / 2); math.Abs(got-start/2) > 1e-9 {
				t.Fatalf("fade midpoint: got %v want %v", got, start/2)
			}
			if got := s.Gain().ValueAt(end); got != 0 {
				t.Fatalf("gain at cap %v", got)
			}
			if s.StopTime() != end {
				t.Fatalf("stop %v want %v", s.StopTime(), end)
			}
		})
	}
}

func TestPitchBendOnlyRetunesSameInstrument(t *testing.T) {
	c := render.NewContext(rate, 1)
	m := NewManager(c, nil)
	lead, bass := synthInstrument("lead"), synthInstrument("bass")
	lead.Synth.Update(func(p *model.SynthParams) { p.PitchBendRange = 12 })
	if err := m.NoteOn(lead, 69, 100); err != nil {
		t.Fatal(err)
	}
	if err := m.NoteOn(bass, 45, 100); err != nil {
		t.Fatal(err)
	}
	m.PitchBend(lead, 1)
	if got := lead.Synth.Snapshot().PitchBend; got != 1 {
		t.Fatalf("bend not stored: %v", got)
	}
	if got := m.Voice(69).freq.ValueAt(100); math.Abs(got-880) > 1e-6 {
		t.Fatalf("lead should glide to 880, at %v", got)
	}
	if got := m.Voice(45).freq.ValueAt(100); math.Abs(got-110) > 1e-6 {
		t.Fatalf("bass should stay at 110, at %v", got)
	}
}

func TestControlChange(t *testing.T) {
	c := render.NewContext(rate, 1)
	m := NewManager(c, nil)
	inst := synthInstrument("lead")
	if err := m.NoteOn(inst, 60, 100); err != nil {
		t.Fatal(err)
	}
	m.ControlChange(inst, 74, 127)
	if got := m.Voice(60).cutoff.ValueAt(100); math.Abs(got-5050) > 1e-6 {
		t.Fatalf("cutoff glide target: %v", got)
	}
	m.ControlChange(inst, 1, 0)
	if got := inst.Synth.Snapshot().LFODepth; got != 0 {
		t.Fatalf("lfo depth: %v", got)
	}
	before := inst.Synth.Snapshot()
	m.ControlChange(inst, 7, 10)
	if inst.Synth.Snapshot() != before {
		t.Fatal("unknown controller changed settings")
	}
}

func TestNoteOnResumeFailure(t *testing.T) {
	c := render.NewContext(rate, 1)
	boom := errors.New("no device")
	m := NewManager(c, func() error { return boom })
	err := m.NoteOn(synthInstrument("lead"), 60, 100)
	if !errors.Is(err, ErrResume) || !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if m.Len() != 0 {
		t.Fatal("no voice should be created")
	}
}

func TestDrumNoteOnLeavesNoEntry(t *testing.T) {
	c := render.NewContext(rate, 1)
	m := NewManager(c, nil)
	if err := m.NoteOn(&model.Instrument{ID: "kick", Kind: model.KindDrum}, 36, 127); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 || c.Sources() != 1 {
		t.Fatalf("voices %d sources %d", m.Len(), c.Sources())
	}
}
