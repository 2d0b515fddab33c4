package effects

import "github.com/cbegin/stepsynth-go/internal/lfo"

// Chorus is a short delay line whose read position is swept by a sine LFO.
// It returns only the delayed signal.
type Chorus struct {
	bufL, bufR []float32
	pos        int
	base       float64 // samples
	mod        *lfo.LFO
	rate       float64
}

// NewChorus creates a chorus whose delay moves between base-depth and
// base+depth seconds at rateHz.
func NewChorus(sampleRate, baseSec, depthSec, rateHz float64) *Chorus {
	base := baseSec * sampleRate
	depth := depthSec * sampleRate
	size := int(base+depth) + 3
	return &Chorus{
		bufL: make([]float32, size),
		bufR: make([]float32, size),
		base: base,
		mod:  lfo.New(depth, rateHz),
		rate: sampleRate,
	}
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r

	delay := c.base + c.mod.Sample(c.rate)
	if delay < 0 {
		delay = 0
	}
	size := len(c.bufL)
	readPos := float64(c.pos) - delay
	for readPos < 0 {
		readPos += float64(size)
	}
	idx := int(readPos)
	frac := float32(readPos - float64(idx))
	idx2 := idx + 1
	if idx2 >= size {
		idx2 = 0
	}
	outL := c.bufL[idx]*(1-frac) + c.bufL[idx2]*frac
	outR := c.bufR[idx]*(1-frac) + c.bufR[idx2]*frac

	c.pos++
	if c.pos >= size {
		c.pos = 0
	}
	return outL, outR
}
