package voice

import (
	"github.com/go-audio/audio"

	"github.com/cbegin/stepsynth-go/internal/automation"
	"github.com/cbegin/stepsynth-go/internal/osc"
	"github.com/cbegin/stepsynth-go/internal/render"
)

const (
	kickStartHz   = 150.0
	kickEndHz     = 40.0
	kickSweep     = 0.1
	kickDecay     = 0.4
	kickLength    = 0.5
	snareDecay    = 0.2
	snareLength   = 0.5
	clickHz       = 8000.0
	clickLevel    = 0.2
	clickDecay    = 0.05
	clickLength   = 0.1
	drumDecayGoal = 0.01
)

// Tone is a sine oscillator with frequency and gain automation that stops
// at a fixed time.
type Tone struct {
	start, stop float64
	osc         osc.Oscillator
	freq, gain  *automation.Param
	out         render.Output
	fbuf, gbuf  []float64
}

func newTone(at, stop float64, freq, gain *automation.Param, out render.Output) *Tone {
	return &Tone{
		start: at,
		stop:  stop,
		freq:  freq,
		gain:  gain,
		out:   out,
		fbuf:  make([]float64, render.Quantum),
		gbuf:  make([]float64, render.Quantum),
	}
}

func (s *Tone) Render(b *render.Bus) {
	if b.End() <= s.start {
		return
	}
	dt := 1 / b.Rate
	s.freq.Fill(s.fbuf, b.Time(0), dt)
	s.gain.Fill(s.gbuf, b.Time(0), dt)
	for i := 0; i < render.Quantum; i++ {
		t := b.Time(i)
		if t < s.start {
			continue
		}
		if t >= s.stop {
			break
		}
		y := float32(s.osc.Next(s.fbuf[i], b.Rate) * s.gbuf[i])
		b.Add(i, y, y, s.out)
	}
}

func (s *Tone) Done(now float64) bool { return now >= s.stop }

// Buffer plays interleaved PCM once from its start time under a gain
// envelope. Mono data feeds both channels; extra channels are ignored.
type Buffer struct {
	start    float64
	data     []float32
	channels int
	srcRate  float64
	gain     *automation.Param
	out      render.Output
	gbuf     []float64
	finished bool
}

func newBuffer(at float64, data []float32, channels int, srcRate float64, gain *automation.Param, out render.Output) *Buffer {
	if channels < 1 {
		channels = 1
	}
	return &Buffer{
		start:    at,
		data:     data,
		channels: channels,
		srcRate:  srcRate,
		gain:     gain,
		out:      out,
		gbuf:     make([]float64, render.Quantum),
	}
}

func (s *Buffer) frames() int { return len(s.data) / s.channels }

// Length is the playback duration in seconds.
func (s *Buffer) Length() float64 {
	return float64(s.frames()) / s.srcRate
}

func (s *Buffer) frame(i int) (float32, float32) {
	j := i * s.channels
	if s.channels == 1 {
		return s.data[j], s.data[j]
	}
	return s.data[j], s.data[j+1]
}

func (s *Buffer) Render(b *render.Bus) {
	if b.End() <= s.start {
		return
	}
	s.gain.Fill(s.gbuf, b.Time(0), 1/b.Rate)
	n := s.frames()
	for i := 0; i < render.Quantum; i++ {
		t := b.Time(i)
		if t < s.start {
			continue
		}
		pos := (float64(b.Frame+int64(i)) - s.start*b.Rate) * s.srcRate / b.Rate
		idx := int(pos)
		if idx >= n {
			s.finished = true
			break
		}
		l, r := s.frame(idx)
		if frac := float32(pos - float64(idx)); frac > 0 && idx+1 < n {
			l2, r2 := s.frame(idx + 1)
			l += (l2 - l) * frac
			r += (r2 - r) * frac
		}
		g := float32(s.gbuf[i])
		b.Add(i, l*g, r*g, s.out)
	}
}

func (s *Buffer) Done(now float64) bool {
	return s.finished || now >= s.start+s.Length()
}

// Kick is a sine swept from 150 to 40 Hz with a 0.4 s exponential decay.
func Kick(at, vol float64, out render.Output) *Tone {
	freq := automation.New(kickStartHz)
	freq.SetValueAtTime(kickStartHz, at)
	freq.ExponentialRampToValueAtTime(kickEndHz, at+kickSweep)
	gain := automation.New(0)
	gain.SetValueAtTime(vol, at)
	gain.ExponentialRampToValueAtTime(drumDecayGoal, at+kickDecay)
	return newTone(at, at+kickLength, freq, gain, out)
}

// Snare is half a second of white noise with a 0.2 s exponential decay.
func Snare(c *render.Context, at, vol float64, out render.Output) *Buffer {
	gain := automation.New(0)
	gain.SetValueAtTime(vol, at)
	gain.ExponentialRampToValueAtTime(drumDecayGoal, at+snareDecay)
	return newBuffer(at, c.Noise(snareLength), 1, c.SampleRate(), gain, out)
}

// Click is the short 8 kHz blip used for hats and any other drum id.
func Click(at, vol float64, out render.Output) *Tone {
	gain := automation.New(0)
	gain.SetValueAtTime(vol*clickLevel, at)
	gain.ExponentialRampToValueAtTime(drumDecayGoal, at+clickDecay)
	return newTone(at, at+clickLength, automation.New(clickHz), gain, out)
}

// Drum picks the recipe for a drum instrument id.
func Drum(c *render.Context, id string, at, vol float64, out render.Output) render.Source {
	switch id {
	case "kick":
		return Kick(at, vol, out)
	case "snare":
		return Snare(c, at, vol, out)
	default:
		return Click(at, vol, out)
	}
}

// Sample plays a decoded buffer once at gain vol.
func Sample(at, vol float64, buf *audio.Float32Buffer, out render.Output) *Buffer {
	ch, rate := 1, 44100.0
	if f := buf.Format; f != nil {
		if f.NumChannels > 0 {
			ch = f.NumChannels
		}
		if f.SampleRate > 0 {
			rate = float64(f.SampleRate)
		}
	}
	return newBuffer(at, buf.Data, ch, rate, automation.New(vol), out)
}
