// Package osc contains the band-limited oscillators and the lowpass filter
// used by synth voices.
package osc

import (
	"fmt"
	"math"
	"strings"
)

type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

var waveNames = [...]string{"sine", "square", "sawtooth", "triangle"}

func (w Waveform) String() string {
	if w < Sine || w > Triangle {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
	return waveNames[w]
}

// ParseWaveform accepts the lower-case waveform names.
func ParseWaveform(s string) (Waveform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range waveNames {
		if n == s {
			return Waveform(i), nil
		}
	}
	return Sine, fmt.Errorf("unknown waveform %q", s)
}

func (w Waveform) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Waveform) UnmarshalText(b []byte) error {
	v, err := ParseWaveform(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// Oscillator is a phase accumulator. Every waveform starts at zero and rises.
type Oscillator struct {
	Wave  Waveform
	phase float64
}

// Next returns the current sample and advances the phase for freq.
func (o *Oscillator) Next(freq, sampleRate float64) float64 {
	dt := freq / sampleRate
	adt := math.Abs(dt)
	p := o.phase
	var v float64
	switch o.Wave {
	case Square:
		v = 1
		if p >= 0.5 {
			v = -1
		}
		v += polyBLEP(p, adt)
		v -= polyBLEP(wrap(p+0.5), adt)
	case Sawtooth:
		q := wrap(p + 0.5)
		v = 2*q - 1 - polyBLEP(q, adt)
	case Triangle:
		v = 1 - 4*math.Abs(wrap(p+0.25)-0.5)
	default:
		v = math.Sin(2 * math.Pi * p)
	}
	o.phase = wrap(p + dt)
	return v
}

func wrap(p float64) float64 {
	return p - math.Floor(p)
}

func polyBLEP(t, dt float64) float64 {
	if dt <= 0 || dt >= 0.5 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}
