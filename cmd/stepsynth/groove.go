package main

import (
	"fmt"

	"github.com/cbegin/stepsynth-go"
)

// groove is one instrument's part in a demo pattern: active steps and,
// for synths, the note on each.
type groove struct {
	instrument string
	steps      []int
	notes      []int
	velocity   float64
}

var demoGrooves = map[string][]groove{
	"VERSE A": {
		{instrument: "kick", steps: []int{0, 4, 8, 12}, velocity: 1},
		{instrument: "snare", steps: []int{4, 12}, velocity: 0.8},
		{instrument: "hihat", steps: []int{2, 6, 10, 14}, velocity: 0.6},
		{instrument: "bass", steps: []int{0, 3, 6, 8, 11, 14}, notes: []int{36, 36, 43, 41, 41, 39}, velocity: 0.9},
	},
	"CHORUS": {
		{instrument: "kick", steps: []int{0, 4, 8, 10, 12}, velocity: 1},
		{instrument: "snare", steps: []int{4, 12, 15}, velocity: 0.8},
		{instrument: "hihat", steps: []int{0, 2, 4, 6, 8, 10, 12, 14}, velocity: 0.5},
		{instrument: "bass", steps: []int{0, 2, 4, 6, 8, 10, 12, 14}, notes: []int{33, 45, 33, 45, 36, 48, 38, 50}, velocity: 0.9},
		{instrument: "lead", steps: []int{0, 3, 6, 10}, notes: []int{69, 72, 76, 74}, velocity: 0.7},
	},
}

// demoLibrary is the stock library with the demo grooves written into its
// patterns.
func demoLibrary() (*stepsynth.Library, error) {
	lib := stepsynth.DefaultLibrary()
	for _, p := range lib.Patterns() {
		for _, g := range demoGrooves[p.Name] {
			if err := applyGroove(lib, p, g); err != nil {
				return nil, fmt.Errorf("pattern %s: %w", p.Name, err)
			}
		}
	}
	return lib, nil
}

func applyGroove(lib *stepsynth.Library, p *stepsynth.Pattern, g groove) error {
	for _, tr := range p.Tracks {
		if tr.InstrumentID != g.instrument {
			continue
		}
		for i, step := range g.steps {
			s := stepsynth.Step{Active: true, Velocity: g.velocity}
			if i < len(g.notes) {
				s.Note = g.notes[i]
			}
			if err := lib.SetStep(p.ID, tr.ID, step, s); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", stepsynth.ErrUnknownInstrument, g.instrument)
}

// addSampleTrack plays a loaded sample instrument on the offbeats of every
// pattern.
func addSampleTrack(lib *stepsynth.Library, name string, inst *stepsynth.Instrument) error {
	for _, p := range lib.Patterns() {
		if err := applyGroove(lib, p, groove{instrument: inst.ID, steps: []int{2, 6, 10, 14}, velocity: 0.8}); err != nil {
			return fmt.Errorf("sample %s: %w", name, err)
		}
	}
	return nil
}
