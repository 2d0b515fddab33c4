// Package analysis turns the master output into smoothed magnitude spectra
// for level meters and spectrum displays.
package analysis

import (
	"fmt"
	"math"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/viterin/vek/vek32"
)

const (
	FFTSize     = 256
	MinDecibels = -100.0
	MaxDecibels = -30.0
	Smoothing   = 0.8
)

// Analyser keeps the most recent FFTSize mono samples of the output.
type Analyser struct {
	mu       sync.Mutex
	ring     []float32
	writePos int

	window   []float32
	frame    []float32
	in       []float64
	spec     []complex128
	mag      []float32
	smoothed []float32
	forward  func(dst []complex128, src []float64)
}

func New() (*Analyser, error) {
	plan, err := algofft.NewPlanReal64(FFTSize)
	if err != nil {
		return nil, fmt.Errorf("analysis: fft plan: %w", err)
	}
	a := &Analyser{
		ring:     make([]float32, FFTSize),
		window:   make([]float32, FFTSize),
		frame:    make([]float32, FFTSize),
		in:       make([]float64, FFTSize),
		spec:     make([]complex128, FFTSize/2+1),
		mag:      make([]float32, FFTSize/2),
		smoothed: make([]float32, FFTSize/2),
		forward:  func(dst []complex128, src []float64) { plan.Forward(dst, src) },
	}
	for i := range a.window {
		x := 2 * math.Pi * float64(i) / FFTSize
		a.window[i] = float32(0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x))
	}
	return a, nil
}

// Tap records a block of stereo output, downmixed to mono. It is safe to
// call from the rendering goroutine.
func (a *Analyser) Tap(l, r []float32) {
	a.mu.Lock()
	for i := range l {
		a.ring[a.writePos] = (l[i] + r[i]) * 0.5
		a.writePos++
		if a.writePos == FFTSize {
			a.writePos = 0
		}
	}
	a.mu.Unlock()
}

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int { return FFTSize / 2 }

// spectrum updates the smoothed magnitudes in dB into a.mag.
func (a *Analyser) spectrum() {
	n := copy(a.frame, a.ring[a.writePos:])
	copy(a.frame[n:], a.ring[:a.writePos])
	vek32.Mul_Inplace(a.frame, a.window)
	for i, v := range a.frame {
		a.in[i] = float64(v)
	}
	a.forward(a.spec, a.in)
	for k := range a.smoothed {
		m := float32(cmplxAbs(a.spec[k]) / FFTSize)
		s := Smoothing*a.smoothed[k] + (1-Smoothing)*m
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			s = 0
		}
		a.smoothed[k] = s
	}
	copy(a.mag, a.smoothed)
	vek32.Log10_Inplace(a.mag)
	vek32.MulNumber_Inplace(a.mag, 20)
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// FloatFrequencyData writes magnitudes in dB into dst and returns the number
// of bins written.
func (a *Analyser) FloatFrequencyData(dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spectrum()
	return copy(dst, a.mag)
}

// ByteFrequencyData writes magnitudes scaled from [MinDecibels, MaxDecibels]
// onto 0..255 into dst and returns the number of bins written.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spectrum()
	n := min(len(dst), len(a.mag))
	scale := 255 / (MaxDecibels - MinDecibels)
	for k := 0; k < n; k++ {
		v := scale * (float64(a.mag[k]) - MinDecibels)
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		dst[k] = byte(v)
	}
	return n
}
