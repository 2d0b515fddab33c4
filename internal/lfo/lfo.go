// Package lfo provides the sine low-frequency oscillator used for voice
// vibrato and chorus sweep.
package lfo

import "math"

// LFO produces one modulation value per sample. The zero value is silent.
type LFO struct {
	depth  float64 // peak deviation, in the unit of the modulated parameter
	rateHz float64
	phase  float64 // [0, 1)
}

func New(depth, rateHz float64) *LFO {
	return &LFO{depth: depth, rateHz: rateHz}
}

// Sample returns the value at the current phase in [-depth, +depth] and
// advances by one sample.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	v := math.Sin(2 * math.Pi * l.phase)
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}
