// Package effects builds the global send effects: a feedback delay, a
// modulated chorus and a convolution reverb.
package effects

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cbegin/stepsynth-go/internal/render"
)

const (
	DelaySeconds   = 0.375
	DelayFeedback  = 0.4
	ChorusBase     = 0.002
	ChorusDepth    = 0.002
	ChorusRateHz   = 1.5
	ReverbSeconds  = 2.0
	reverbChannels = 2
)

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
}

// Target is the rendering context an effects chain is built for.
type Target interface {
	SampleRate() float64
}

// Config holds the send levels feeding each effect from the voice mix. Seed
// fixes the reverb impulse; zero draws a fresh one.
type Config struct {
	DelaySend  float64 `yaml:"delay_send"`
	ChorusSend float64 `yaml:"chorus_send"`
	ReverbSend float64 `yaml:"reverb_send"`
	Seed       int64   `yaml:"reverb_seed"`
}

func DefaultConfig() Config {
	return Config{DelaySend: 0.2, ChorusSend: 0.1, ReverbSend: 0.3}
}

// Chain mixes the dry voice bus with the three effect returns.
type Chain struct {
	delay, chorus Effector
	reverb        *Reverb

	delaySend, chorusSend, reverbSend float32

	revL, revR []float32
	failed     atomic.Bool
}

// Build creates the effects chain for t. Live and offline contexts both get
// their chain here.
func Build(t Target, cfg Config) (*Chain, error) {
	rate := t.SampleRate()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ir := Impulse(rate, ReverbSeconds, reverbChannels, rand.New(rand.NewSource(seed)))
	rev, err := NewReverb(ir, rate, render.Quantum)
	if err != nil {
		return nil, err
	}
	return &Chain{
		delay:      NewDelay(rate, DelaySeconds, DelayFeedback),
		chorus:     NewChorus(rate, ChorusBase, ChorusDepth, ChorusRateHz),
		reverb:     rev,
		delaySend:  float32(cfg.DelaySend),
		chorusSend: float32(cfg.ChorusSend),
		reverbSend: float32(cfg.ReverbSend),
		revL:       make([]float32, render.Quantum),
		revR:       make([]float32, render.Quantum),
	}, nil
}

func (c *Chain) Process(b *render.Bus, outL, outR []float32) {
	for i := range outL {
		l, r := b.DryL[i], b.DryR[i]
		dl, dr := c.delay.Process(l*c.delaySend+b.DelayL[i], r*c.delaySend+b.DelayR[i])
		cl, cr := c.chorus.Process(l*c.chorusSend, r*c.chorusSend)
		c.revL[i] = l*c.reverbSend + b.ReverbL[i]
		c.revR[i] = r*c.reverbSend + b.ReverbR[i]
		outL[i] = l + dl + cl
		outR[i] = r + dr + cr
	}
	if c.failed.Load() {
		return
	}
	rl, rr, err := c.reverb.ProcessBlock(c.revL, c.revR)
	if err != nil {
		c.failed.Store(true)
		return
	}
	for i := range outL {
		outL[i] += rl[i]
		outR[i] += rr[i]
	}
}

// Failed reports whether the reverb stopped after a convolution error.
func (c *Chain) Failed() bool { return c.failed.Load() }
