package render

import (
	"context"
	"errors"
	"testing"
)

// dcSource writes a constant into the dry bus between start and stop.
type dcSource struct {
	start, stop float64
	value       float32
	out         Output
}

func (s *dcSource) Render(b *Bus) {
	for i := 0; i < Quantum; i++ {
		t := b.Time(i)
		if t < s.start || t >= s.stop {
			continue
		}
		b.Add(i, s.value, s.value, s.out)
	}
}

func (s *dcSource) Done(now float64) bool { return now >= s.stop }

func TestRenderStartsSourcesOnTheirFrame(t *testing.T) {
	c := NewContext(1000, 1)
	c.Add(&dcSource{start: 0.01, stop: 0.02, value: 1})
	l, r, err := c.Render(context.Background(), 40)
	if err != nil {
		t.Fatal(err)
	}
	for i := range l {
		want := float32(0)
		if i >= 10 && i < 20 {
			want = 1
		}
		if l[i] != want || r[i] != want {
			t.Fatalf("frame %d: got %f/%f want %f", i, l[i], r[i], want)
		}
	}
	if c.Sources() != 0 {
		t.Fatalf("finished source not removed: %d", c.Sources())
	}
	if got := c.CurrentTime(); got != float64(Quantum)/1000 {
		t.Fatalf("clock: %f", got)
	}
}

func TestMasterGainAndTap(t *testing.T) {
	c := NewContext(1000, 1)
	c.Master().SetValueAtTime(0.5, 0)
	var tapped int
	c.SetTap(func(l, r []float32) {
		tapped += len(l)
		if l[0] != 0.5 {
			t.Errorf("tap saw %f", l[0])
		}
	})
	c.Add(&dcSource{start: 0, stop: 10, value: 1})
	l, _, err := c.Render(context.Background(), 256)
	if err != nil {
		t.Fatal(err)
	}
	if l[100] != 0.5 {
		t.Fatalf("master gain not applied: %f", l[100])
	}
	if tapped != 256 {
		t.Fatalf("tap saw %d frames", tapped)
	}
}

func TestProcessMatchesRender(t *testing.T) {
	a := NewContext(1000, 1)
	b := NewContext(1000, 1)
	for _, c := range []*Context{a, b} {
		c.Add(&dcSource{start: 0.05, stop: 0.3, value: 0.25})
	}
	l, r, err := a.Render(context.Background(), 400)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]float32, 0, 800)
	for _, n := range []int{6, 250, 2, 542} {
		buf := make([]float32, n)
		b.Process(buf)
		got = append(got, buf...)
	}
	for i := 0; i < 400; i++ {
		if got[2*i] != l[i] || got[2*i+1] != r[i] {
			t.Fatalf("frame %d differs", i)
		}
	}
}

type captureProc struct{ delay, reverb float32 }

func (p *captureProc) Process(b *Bus, outL, outR []float32) {
	p.delay += b.DelayL[0]
	p.reverb += b.ReverbR[0]
	copy(outL, b.DryL)
	copy(outR, b.DryR)
}

func TestSendsReachProcessor(t *testing.T) {
	c := NewContext(1000, 1)
	p := &captureProc{}
	c.SetProcessor(p)
	c.Add(&dcSource{start: 0, stop: 1, value: 1, out: Output{DelaySend: 0.5, ReverbSend: 0.25}})
	if _, _, err := c.Render(context.Background(), Quantum); err != nil {
		t.Fatal(err)
	}
	if p.delay != 0.5 || p.reverb != 0.25 {
		t.Fatalf("sends: delay %f reverb %f", p.delay, p.reverb)
	}
}

func TestRenderHonoursCancellation(t *testing.T) {
	c := NewContext(1000, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Render(ctx, 1000); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestNoiseIsSeeded(t *testing.T) {
	a := NewContext(1000, 7).Noise(0.1)
	b := NewContext(1000, 7).Noise(0.1)
	if len(a) != 100 {
		t.Fatalf("len %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] || a[i] < -1 || a[i] >= 1 {
			t.Fatalf("sample %d: %f vs %f", i, a[i], b[i])
		}
	}
}
