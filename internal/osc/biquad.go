package osc

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Lowpass is a second-order lowpass whose Q is given in dB, matching the
// resonance convention of browser audio filters.
type Lowpass struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
	freq, q, rate      float64
}

// Set recomputes coefficients when the cutoff or Q changed.
func (f *Lowpass) Set(freqHz, qdB, sampleRate float64) {
	if freqHz == f.freq && qdB == f.q && sampleRate == f.rate {
		return
	}
	f.freq, f.q, f.rate = freqHz, qdB, sampleRate
	nyquist := sampleRate / 2
	fc := freqHz / nyquist
	switch {
	case fc >= 1:
		// fully open
		f.b0, f.b1, f.b2, f.a1, f.a2 = 1, 0, 0, 0, 0
		return
	case fc <= 0:
		f.b0, f.b1, f.b2, f.a1, f.a2 = 0, 0, 0, 0, 0
		return
	}
	w0 := math.Pi * fc
	alpha := math.Sin(w0) / (2 * math.Pow(10, qdB/20))
	cw := math.Cos(w0)
	a0 := 1 + alpha
	f.b0 = (1 - cw) / 2 / a0
	f.b1 = (1 - cw) / a0
	f.b2 = f.b0
	f.a1 = -2 * cw / a0
	f.a2 = (1 - alpha) / a0
}

func (f *Lowpass) Process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, dspcore.FlushDenormals(y)
	return y
}
