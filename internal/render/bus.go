package render

// Quantum is the number of frames rendered per block.
const Quantum = 128

// Output routes a source into the send buses on top of the dry mix.
type Output struct {
	DelaySend  float32
	ReverbSend float32
}

// Bus is one block of mixed voice output. Sources add into it; the effects
// processor reads it.
type Bus struct {
	Frame int64 // first frame of the block
	Rate  float64

	DryL, DryR       []float32
	DelayL, DelayR   []float32
	ReverbL, ReverbR []float32
}

func newBus(rate float64) *Bus {
	b := &Bus{Rate: rate}
	for _, p := range []*[]float32{&b.DryL, &b.DryR, &b.DelayL, &b.DelayR, &b.ReverbL, &b.ReverbR} {
		*p = make([]float32, Quantum)
	}
	return b
}

// Time is the audio clock time of frame i of the block.
func (b *Bus) Time(i int) float64 {
	return float64(b.Frame+int64(i)) / b.Rate
}

// End is the time just past the block.
func (b *Bus) End() float64 {
	return b.Time(Quantum)
}

// Add mixes a stereo sample into frame i.
func (b *Bus) Add(i int, l, r float32, o Output) {
	b.DryL[i] += l
	b.DryR[i] += r
	if o.DelaySend != 0 {
		b.DelayL[i] += l * o.DelaySend
		b.DelayR[i] += r * o.DelaySend
	}
	if o.ReverbSend != 0 {
		b.ReverbL[i] += l * o.ReverbSend
		b.ReverbR[i] += r * o.ReverbSend
	}
}

func (b *Bus) reset(frame int64) {
	b.Frame = frame
	for _, s := range [][]float32{b.DryL, b.DryR, b.DelayL, b.DelayR, b.ReverbL, b.ReverbR} {
		clear(s)
	}
}
