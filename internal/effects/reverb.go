package effects

import (
	"fmt"
	"math"
	"math/rand"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
)

const (
	irCalibration     = 0.00125
	irCalibrationRate = 44100.0
	irMinPower        = 0.000125
)

// Impulse returns a decaying white-noise impulse response of the given
// length, one slice per channel.
func Impulse(sampleRate, seconds float64, channels int, rng *rand.Rand) [][]float32 {
	n := int(sampleRate * seconds)
	out := make([][]float32, channels)
	for ch := range out {
		data := make([]float32, n)
		for j := range data {
			env := 1 - float64(j)/float64(n)
			data[j] = float32((rng.Float64()*2 - 1) * env * env)
		}
		out[ch] = data
	}
	return out
}

// ImpulseScale is the gain a normalizing convolver applies to ir so that
// responses of different energy come out at a similar level.
func ImpulseScale(ir [][]float32, sampleRate float64) float64 {
	var power float64
	n := 0
	for _, ch := range ir {
		for _, v := range ch {
			power += float64(v) * float64(v)
		}
		n += len(ch)
	}
	if n > 0 {
		power = math.Sqrt(power / float64(n))
	}
	if math.IsNaN(power) || math.IsInf(power, 0) || power < irMinPower {
		power = irMinPower
	}
	scale := 1 / power * irCalibration
	if sampleRate > 0 {
		scale *= irCalibrationRate / sampleRate
	}
	return scale
}

// Reverb is a stereo partitioned convolution over Quantum-sized blocks.
type Reverb struct {
	left, right *dspconv.StreamingOverlapAddT[float32, complex64]
	outL, outR  []float32
	part        int
}

// NewReverb builds a reverb over a normalized copy of ir (left, right).
func NewReverb(ir [][]float32, sampleRate float64, blockSize int) (*Reverb, error) {
	if len(ir) != 2 {
		return nil, fmt.Errorf("reverb: need a stereo impulse, got %d channels", len(ir))
	}
	scale := float32(ImpulseScale(ir, sampleRate))
	norm := make([][]float32, 2)
	for ch := range ir {
		norm[ch] = make([]float32, len(ir[ch]))
		for i, v := range ir[ch] {
			norm[ch][i] = v * scale
		}
	}
	left, err := dspconv.NewStreamingOverlapAdd32(norm[0], blockSize)
	if err != nil {
		return nil, fmt.Errorf("reverb: left convolver: %w", err)
	}
	right, err := dspconv.NewStreamingOverlapAdd32(norm[1], blockSize)
	if err != nil {
		return nil, fmt.Errorf("reverb: right convolver: %w", err)
	}
	return &Reverb{
		left:  left,
		right: right,
		outL:  make([]float32, blockSize),
		outR:  make([]float32, blockSize),
		part:  blockSize,
	}, nil
}

// ProcessBlock convolves one block per channel. The returned slices are
// reused by the next call.
func (r *Reverb) ProcessBlock(inL, inR []float32) ([]float32, []float32, error) {
	if err := r.left.ProcessBlockTo(r.outL, inL); err != nil {
		return nil, nil, err
	}
	if err := r.right.ProcessBlockTo(r.outR, inR); err != nil {
		return nil, nil, err
	}
	return r.outL, r.outR, nil
}
