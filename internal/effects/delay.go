package effects

// Delay is a stereo feedback delay returning only the delayed signal.
type Delay struct {
	bufL, bufR []float32
	pos        int
	feedback   float32
}

// NewDelay creates a delay of delaySec seconds. Each repeat is scaled by
// feedback, clamped to [0, 0.95].
func NewDelay(sampleRate, delaySec float64, feedback float32) *Delay {
	n := int(delaySec * sampleRate)
	if n < 1 {
		n = 1
	}
	return &Delay{
		bufL:     make([]float32, n),
		bufR:     make([]float32, n),
		feedback: clamp(feedback, 0, 0.95),
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	delL := d.bufL[d.pos]
	delR := d.bufR[d.pos]
	d.bufL[d.pos] = l + delL*d.feedback
	d.bufR[d.pos] = r + delR*d.feedback
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return delL, delR
}


func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
