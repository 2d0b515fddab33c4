package main

import "testing"

func TestDemoLibrary(t *testing.T) {
	lib, err := demoLibrary()
	if err != nil {
		t.Fatal(err)
	}
	for name, parts := range demoGrooves {
		p, ok := lib.PatternByName(name)
		if !ok {
			t.Fatalf("pattern %q missing", name)
		}
		want := 0
		for _, g := range parts {
			want += len(g.steps)
		}
		got := 0
		for _, tr := range p.Tracks {
			for _, s := range tr.Steps {
				if s.Active {
					got++
				}
			}
		}
		if got != want {
			t.Errorf("%s: %d active steps, want %d", name, got, want)
		}
	}
}

func TestApplyGrooveUnknownInstrument(t *testing.T) {
	lib, err := demoLibrary()
	if err != nil {
		t.Fatal(err)
	}
	p := lib.Patterns()[0]
	if err := applyGroove(lib, p, groove{instrument: "cowbell", steps: []int{0}}); err == nil {
		t.Fatal("expected error")
	}
}
