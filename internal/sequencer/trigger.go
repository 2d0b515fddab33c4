package sequencer

import (
	"log/slog"

	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/modmath"
	"github.com/cbegin/stepsynth-go/internal/render"
	"github.com/cbegin/stepsynth-go/internal/voice"
)

// InstrumentLookup resolves an instrument id, returning nil when unknown.
type InstrumentLookup func(id string) *model.Instrument

// Trigger is one step scheduled by TriggerTick.
type Trigger struct {
	TrackID string
	Step    int
	At      float64
}

// TriggerTick schedules every audible, active step of p that tick lands on.
// Tracks whose instrument is unknown are skipped.
func TriggerTick(c *render.Context, p *model.Pattern, lookup InstrumentLookup, tick int, at float64, log *slog.Logger) []Trigger {
	var fired []Trigger
	anySolo := p.AnySoloed()
	for _, tr := range p.Tracks {
		if !tr.Audible(anySolo) {
			continue
		}
		step := tr.StepAt(tick)
		if !step.Active {
			continue
		}
		inst := lookup(tr.InstrumentID)
		if inst == nil {
			if log != nil {
				log.Debug("unknown instrument", "track", tr.ID, "instrument", tr.InstrumentID)
			}
			continue
		}
		out := render.Output{DelaySend: float32(tr.DelaySend), ReverbSend: float32(tr.ReverbSend)}
		if voice.Play(c, inst, at, step.Velocity*tr.Volume, step.NoteOrDefault(), out) != nil {
			fired = append(fired, Trigger{TrackID: tr.ID, Step: modmath.EffectiveStep(tick, tr.StepCount), At: at})
		}
	}
	return fired
}
