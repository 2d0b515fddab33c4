package sequencer

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/render"
)

type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d float64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	ticks []int
	times []float64
}

func (r *recorder) fn(tick int, at float64) error {
	r.mu.Lock()
	r.ticks = append(r.ticks, tick)
	r.times = append(r.times, at)
	r.mu.Unlock()
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func fastOptions() Options {
	return Options{Interval: time.Millisecond}
}

func TestStartFiresLookaheadWindow(t *testing.T) {
	clock := &fakeClock{now: 2}
	s := New(clock, fastOptions())
	rec := &recorder{}
	if err := s.Start(context.Background(), rec.fn); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	// 120 bpm: 0.125 s per step, 0.1 s lookahead -> only the first step
	waitFor(t, func() bool { return rec.len() >= 1 })
	time.Sleep(10 * time.Millisecond)
	if rec.len() != 1 {
		t.Fatalf("fired %d steps without the clock moving", rec.len())
	}
	if rec.ticks[0] != 0 || rec.times[0] != 2 {
		t.Fatalf("first step: tick %d at %v", rec.ticks[0], rec.times[0])
	}
	at, ok := s.NextStepTime()
	if !ok || at != 2.125 {
		t.Fatalf("next step %v %v", at, ok)
	}
}

func TestStepsAreEvenlySpacedAsClockAdvances(t *testing.T) {
	clock := &fakeClock{}
	s := New(clock, fastOptions())
	rec := &recorder{}
	if err := s.Start(context.Background(), rec.fn); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 40; i++ {
		clock.Advance(0.05)
		time.Sleep(2 * time.Millisecond)
	}
	waitFor(t, func() bool { return rec.len() >= 16 })
	s.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, at := range rec.times {
		if rec.ticks[i] != i {
			t.Fatalf("tick %d reported as %d", i, rec.ticks[i])
		}
		if want := float64(i) * 0.125; math.Abs(at-want) > 1e-9 {
			t.Fatalf("step %d at %v, want %v", i, at, want)
		}
	}
}

func TestNoTickAfterStop(t *testing.T) {
	clock := &fakeClock{}
	s := New(clock, fastOptions())
	var fired atomic.Int64
	var stopped atomic.Bool
	err := s.Start(context.Background(), func(tick int, at float64) error {
		if stopped.Load() {
			t.Errorf("tick %d fired after Stop", tick)
		}
		fired.Add(1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return fired.Load() > 0 })
	s.Stop()
	stopped.Store(true)
	for i := 0; i < 20; i++ {
		clock.Advance(1)
		time.Sleep(time.Millisecond)
	}
	if _, ok := s.NextStepTime(); ok {
		t.Fatal("next step time should be undefined after stop")
	}
	if s.Running() {
		t.Fatal("still running")
	}
}

func TestRestartCountsFromZero(t *testing.T) {
	clock := &fakeClock{now: 5}
	s := New(clock, fastOptions())
	rec := &recorder{}
	if err := s.Start(context.Background(), rec.fn); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background(), rec.fn); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
	waitFor(t, func() bool { return rec.len() >= 1 })
	s.Stop()
	clock.Advance(3)
	if err := s.Start(context.Background(), rec.fn); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.len() >= 2 })
	s.Stop()
	if rec.ticks[1] != 0 || rec.times[1] != 8 {
		t.Fatalf("restart: tick %d at %v", rec.ticks[1], rec.times[1])
	}
}

func TestSetBPMChangesSpacing(t *testing.T) {
	clock := &fakeClock{}
	s := New(clock, Options{Interval: time.Millisecond, BPM: 60, Lookahead: time.Second})
	rec := &recorder{}
	if err := s.Start(context.Background(), rec.fn); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return rec.len() >= 4 })
	s.Stop()
	if rec.times[1] != 0.25 {
		t.Fatalf("60 bpm step: %v", rec.times[1])
	}
	s.SetBPM(0)
	if s.BPM() != 60 {
		t.Fatal("non-positive bpm should be ignored")
	}
}

func TestCallbackErrorStopsTransport(t *testing.T) {
	clock := &fakeClock{}
	s := New(clock, fastOptions())
	boom := errors.New("boom")
	if err := s.Start(context.Background(), func(int, float64) error { return boom }); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return !s.Running() })
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("err: %v", s.Err())
	}
}

func TestCallbackPanicStopsTransport(t *testing.T) {
	clock := &fakeClock{}
	s := New(clock, fastOptions())
	if err := s.Start(context.Background(), func(int, float64) error { panic("bad step") }); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return !s.Running() })
	if s.Err() == nil {
		t.Fatal("expected an error")
	}
}

func TestTriggerTickHonoursSoloAndMute(t *testing.T) {
	lib := model.DefaultLibrary()
	p, _ := lib.Pattern("p1")
	for _, tr := range p.Tracks {
		tr.Steps[0].Active = true
	}
	p.Tracks[0].Muted = true
	c := render.NewContext(8000, 1)

	fired := TriggerTick(c, p, lib.Instrument, 0, 0, nil)
	if len(fired) != 4 {
		t.Fatalf("muted track should be skipped, fired %d", len(fired))
	}

	p.Tracks[1].Soloed = true
	p.Tracks[0].Soloed = true
	fired = TriggerTick(c, p, lib.Instrument, 16, 2, nil)
	if len(fired) != 2 {
		t.Fatalf("only soloed tracks should fire, fired %d", len(fired))
	}
	if fired[0].TrackID != p.Tracks[0].ID || fired[0].At != 2 || fired[0].Step != 0 {
		t.Fatalf("trigger: %+v", fired[0])
	}
}

func TestTriggerTickSkipsUnknownInstrument(t *testing.T) {
	p := &model.Pattern{BPM: 120, Tracks: []*model.Track{model.NewTrack("t", "gone")}}
	p.Tracks[0].Steps[0].Active = true
	c := render.NewContext(8000, 1)
	if fired := TriggerTick(c, p, func(string) *model.Instrument { return nil }, 0, 0, nil); len(fired) != 0 {
		t.Fatalf("fired %d", len(fired))
	}
	if c.Sources() != 0 {
		t.Fatal("nothing should be scheduled")
	}
}

type sendMeter struct{ dry, delay, reverb float64 }

func (m *sendMeter) Process(b *render.Bus, outL, outR []float32) {
	for i := range outL {
		m.dry += math.Abs(float64(b.DryL[i]))
		m.delay += math.Abs(float64(b.DelayL[i]))
		m.reverb += math.Abs(float64(b.ReverbL[i]))
	}
}

func TestTriggerTickUsesTrackSends(t *testing.T) {
	tests := []struct {
		name          string
		delay, reverb float64
	}{
		{"dry", 0, 0},
		{"delay only", 0.5, 0},
		{"both", 0.3, 0.8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lib := model.DefaultLibrary()
			id, err := lib.AddTrack("p2", "kick")
			if err != nil {
				t.Fatal(err)
			}
			if err := lib.SetTrackSends("p2", id, tc.delay, tc.reverb); err != nil {
				t.Fatal(err)
			}
			if err := lib.ToggleStep("p2", id, 0); err != nil {
				t.Fatal(err)
			}
			p, _ := lib.Pattern("p2")
			c := render.NewContext(8000, 1)
			m := &sendMeter{}
			c.SetProcessor(m)
			if fired := TriggerTick(c, p, lib.Instrument, 0, 0, nil); len(fired) != 1 || fired[0].TrackID != id {
				t.Fatalf("fired %+v", fired)
			}
			if _, _, err := c.Render(t.Context(), render.Quantum); err != nil {
				t.Fatal(err)
			}
			if m.dry == 0 {
				t.Fatal("dry bus silent")
			}
			if (m.delay > 0) != (tc.delay > 0) || (m.reverb > 0) != (tc.reverb > 0) {
				t.Fatalf("delay bus %v reverb bus %v", m.delay, m.reverb)
			}
		})
	}
}
