// Package render owns the audio clock and the block renderer shared by live
// playback and offline export.
package render

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/cbegin/stepsynth-go/internal/automation"
)

// Source is anything scheduled on a context: a voice, a drum hit or a
// sample. Render is only called from the rendering goroutine.
type Source interface {
	Render(b *Bus)
	// Done reports whether the source is silent for good at time now.
	Done(now float64) bool
}

// Processor turns a block of voice output into the final stereo mix.
type Processor interface {
	Process(b *Bus, outL, outR []float32)
}

// Context is an audio clock plus the sources scheduled against it. Control
// goroutines add sources; one goroutine renders.
type Context struct {
	rate   float64
	frame  atomic.Int64
	master *automation.Param

	mu      sync.Mutex
	pending []Source
	proc    Processor
	tap     func(l, r []float32)

	rngMu sync.Mutex
	rng   *rand.Rand

	// rendering goroutine only
	active       []Source
	bus          *Bus
	outL, outR   []float32
	gain         []float64
	gain32       []float32
	interleaved  []float32
	interleavedN int
}

// NewContext returns a context at sampleRate. A zero seed draws noise from a
// time-based seed.
func NewContext(sampleRate float64, seed int64) *Context {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Context{
		rate:        sampleRate,
		master:      automation.New(1),
		rng:         rand.New(rand.NewSource(seed)),
		bus:         newBus(sampleRate),
		outL:        make([]float32, Quantum),
		outR:        make([]float32, Quantum),
		gain:        make([]float64, Quantum),
		gain32:      make([]float32, Quantum),
		interleaved: make([]float32, 2*Quantum),
	}
}

func (c *Context) SampleRate() float64 { return c.rate }

// CurrentTime is the time of the next frame to be rendered.
func (c *Context) CurrentTime() float64 {
	return float64(c.frame.Load()) / c.rate
}

// Master is the master gain applied after the effects.
func (c *Context) Master() *automation.Param { return c.master }

// Add schedules a source. It is picked up at the next block.
func (c *Context) Add(s Source) {
	c.mu.Lock()
	c.pending = append(c.pending, s)
	c.mu.Unlock()
}

func (c *Context) SetProcessor(p Processor) {
	c.mu.Lock()
	c.proc = p
	c.mu.Unlock()
}

// SetTap installs a callback that sees every rendered block after the master
// gain. It runs on the rendering goroutine.
func (c *Context) SetTap(fn func(l, r []float32)) {
	c.mu.Lock()
	c.tap = fn
	c.mu.Unlock()
}

// Float64 draws from the context's random source.
func (c *Context) Float64() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}

// Noise returns seconds of uniform white noise in [-1,1).
func (c *Context) Noise(seconds float64) []float32 {
	n := int(seconds * c.rate)
	out := make([]float32, n)
	c.rngMu.Lock()
	for i := range out {
		out[i] = float32(c.rng.Float64()*2 - 1)
	}
	c.rngMu.Unlock()
	return out
}

// Sources reports how many sources are scheduled or playing.
func (c *Context) Sources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) + len(c.active)
}

func (c *Context) renderQuantum() {
	c.mu.Lock()
	c.active = append(c.active, c.pending...)
	clear(c.pending)
	c.pending = c.pending[:0]
	proc, tap := c.proc, c.tap
	active := c.active
	c.mu.Unlock()

	frame := c.frame.Load()
	b := c.bus
	b.reset(frame)
	for _, s := range active {
		s.Render(b)
	}

	end := b.End()
	kept := active[:0]
	for _, s := range active {
		if !s.Done(end) {
			kept = append(kept, s)
		}
	}
	clear(active[len(kept):])

	if proc != nil {
		proc.Process(b, c.outL, c.outR)
	} else {
		copy(c.outL, b.DryL)
		copy(c.outR, b.DryR)
	}

	c.master.Fill(c.gain, b.Time(0), 1/c.rate)
	for i, g := range c.gain {
		c.gain32[i] = float32(g)
	}
	vek32.Mul_Inplace(c.outL, c.gain32)
	vek32.Mul_Inplace(c.outR, c.gain32)

	if tap != nil {
		tap(c.outL, c.outR)
	}

	c.mu.Lock()
	c.active = kept
	c.mu.Unlock()
	c.frame.Add(Quantum)
}

// Process fills dst with interleaved stereo frames. It is the pull side of
// the live audio backend.
func (c *Context) Process(dst []float32) {
	for len(dst) > 0 {
		if c.interleavedN == 0 {
			c.renderQuantum()
			for i := 0; i < Quantum; i++ {
				c.interleaved[2*i] = c.outL[i]
				c.interleaved[2*i+1] = c.outR[i]
			}
			c.interleavedN = len(c.interleaved)
		}
		off := len(c.interleaved) - c.interleavedN
		n := copy(dst, c.interleaved[off:])
		c.interleavedN -= n
		dst = dst[n:]
	}
}

// Render runs the clock for frames frames and returns planar stereo output.
// It stops early with ctx's error when ctx is cancelled.
func (c *Context) Render(ctx context.Context, frames int) (left, right []float32, err error) {
	left = make([]float32, frames)
	right = make([]float32, frames)
	for done := 0; done < frames; done += Quantum {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		c.renderQuantum()
		copy(left[done:], c.outL)
		copy(right[done:], c.outR)
	}
	return left, right, nil
}
