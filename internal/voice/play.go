package voice

import (
	"github.com/cbegin/stepsynth-go/internal/model"
	"github.com/cbegin/stepsynth-go/internal/render"
)

// Play schedules one fire-and-forget sound for inst at time at with gain
// vol. It returns the scheduled source, or nil when inst cannot sound.
func Play(c *render.Context, inst *model.Instrument, at, vol float64, note int, out render.Output) render.Source {
	if inst == nil {
		return nil
	}
	var src render.Source
	switch inst.Kind {
	case model.KindSynth:
		if inst.Synth == nil {
			return nil
		}
		src = NewOneShot(c.SampleRate(), inst.ID, inst.Synth.Snapshot(), at, vol, note, out)
	case model.KindDrum:
		src = Drum(c, inst.ID, at, vol, out)
	case model.KindSample:
		if inst.Sample == nil || len(inst.Sample.Data) == 0 {
			return nil
		}
		src = Sample(at, vol, inst.Sample, out)
	default:
		return nil
	}
	c.Add(src)
	return src
}
