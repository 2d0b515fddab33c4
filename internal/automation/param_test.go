package automation

import (
	"math"
	"sync"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDefaultValue(t *testing.T) {
	p := New(0.5)
	if got := p.ValueAt(10); got != 0.5 {
		t.Fatalf("got %f", got)
	}
}

func TestLinearRamp(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)
	tests := []struct{ t, want float64 }{
		{0.5, 0}, {1, 0}, {1.25, 0.25}, {1.5, 0.5}, {2, 1}, {3, 1},
	}
	for _, tt := range tests {
		if got := p.ValueAt(tt.t); !near(got, tt.want) {
			t.Fatalf("ValueAt(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestExponentialRamp(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(150, 0)
	p.ExponentialRampToValueAtTime(40, 0.1)
	if got := p.ValueAt(0.05); !near(got, 150*math.Sqrt(40.0/150)) {
		t.Fatalf("midpoint: %v", got)
	}
	if got := p.ValueAt(0.2); got != 40 {
		t.Fatalf("end: %v", got)
	}
}

func TestExponentialRampHoldsOnZeroEndpoint(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(0, 0)
	p.ExponentialRampToValueAtTime(1, 1)
	if got := p.ValueAt(0.5); got != 0 {
		t.Fatalf("expected hold at 0, got %v", got)
	}
	if got := p.ValueAt(1); got != 1 {
		t.Fatalf("expected jump at end, got %v", got)
	}
}

func TestSetTarget(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(1, 0)
	p.SetTargetAtTime(0, 1, 0.5)
	if got := p.ValueAt(0.9); got != 1 {
		t.Fatalf("before target: %v", got)
	}
	if got := p.ValueAt(1.5); !near(got, math.Exp(-1)) {
		t.Fatalf("one time constant: %v", got)
	}
}

func TestSetTargetFollowsRamp(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.SetTargetAtTime(3, 1, 1)
	if got := p.ValueAt(0.75); !near(got, 0.75) {
		t.Fatalf("inside ramp: %v", got)
	}
	want := 3 + (1-3)*math.Exp(-1)
	if got := p.ValueAt(2); !near(got, want) {
		t.Fatalf("after ramp: %v want %v", got, want)
	}
}

func TestCancelScheduledValues(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(1, 0)
	p.LinearRampToValueAtTime(0, 2)
	p.CancelScheduledValues(1)
	if got := p.ValueAt(1.5); got != 1 {
		t.Fatalf("after cancel: %v", got)
	}
	if p.Len() != 1 {
		t.Fatalf("events left: %d", p.Len())
	}
}

func TestReleaseAfterCancel(t *testing.T) {
	p := New(0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(0.3, 0.1)
	now := 0.5
	p.CancelScheduledValues(now)
	p.SetValueAtTime(p.ValueAt(now), now)
	p.ExponentialRampToValueAtTime(0.001, now+1.2)
	if got := p.ValueAt(now + 1.2); got != 0.001 {
		t.Fatalf("release end: %v", got)
	}
	if got := p.ValueAt(now + 0.6); !near(got, 0.3*math.Sqrt(0.001/0.3)) {
		t.Fatalf("release mid: %v", got)
	}
}

func TestFillMatchesValueAt(t *testing.T) {
	a := New(0)
	b := New(0)
	for _, p := range []*Param{a, b} {
		p.SetValueAtTime(0, 0)
		p.LinearRampToValueAtTime(1, 0.01)
		p.LinearRampToValueAtTime(0.5, 0.02)
		p.SetTargetAtTime(0, 0.03, 0.01)
	}
	const dt = 1.0 / 1000
	buf := make([]float64, 8)
	for block := 0; block < 10; block++ {
		start := float64(block*len(buf)) * dt
		a.Fill(buf, start, dt)
		for i, v := range buf {
			if want := b.ValueAt(start + float64(i)*dt); !near(v, want) {
				t.Fatalf("block %d frame %d: %v want %v", block, i, v, want)
			}
		}
	}
	if a.Len() != 0 {
		t.Fatalf("expected events folded, %d left", a.Len())
	}
}

func TestConcurrentScheduling(t *testing.T) {
	p := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.SetTargetAtTime(float64(j), float64(i*100+j)/1000, 0.05)
			}
		}(i)
	}
	buf := make([]float64, 128)
	for k := 0; k < 10; k++ {
		p.Fill(buf, float64(k)*0.1, 1.0/44100)
	}
	wg.Wait()
}
