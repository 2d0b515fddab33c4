// Package automation implements audio parameters whose value follows a
// timeline of scheduled events, evaluated against the audio clock.
package automation

import (
	"math"
	"sort"
	"sync"
)

type eventKind int

const (
	setValue eventKind = iota
	linearRamp
	exponentialRamp
	setTarget
)

type event struct {
	kind  eventKind
	time  float64
	value float64
	tc    float64
}

// segment is the curve in force after the last applied event.
type segment struct {
	t0, v0   float64
	target   float64
	tc       float64
	approach bool
}

func (s segment) value(t float64) float64 {
	if !s.approach {
		return s.v0
	}
	if s.tc <= 0 {
		return s.target
	}
	return s.target + (s.v0-s.target)*math.Exp(-(t-s.t0)/s.tc)
}

// Param is a scheduled parameter. Events may be added from any goroutine
// while the audio goroutine evaluates it.
type Param struct {
	mu     sync.Mutex
	base   segment
	events []event
}

func New(value float64) *Param {
	return &Param{base: segment{v0: value}}
}

func (p *Param) insert(e event) {
	p.mu.Lock()
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
	p.mu.Unlock()
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(event{kind: setValue, time: t, value: v})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(event{kind: linearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps geometrically from the previous event.
// When either endpoint is not strictly positive the previous value is held
// until t.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(event{kind: exponentialRamp, time: t, value: v})
}

// SetTargetAtTime approaches v from t on with time constant tc.
func (p *Param) SetTargetAtTime(v, t, tc float64) {
	p.insert(event{kind: setTarget, time: t, value: v, tc: tc})
}

// CancelScheduledValues drops every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.mu.Lock()
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:i]
	p.mu.Unlock()
}

func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAt(t)
}

// Fill writes the value at start+i*dt into dst[i]. Events that lie entirely
// before start are folded into the base curve, so start must not decrease
// between calls.
func (p *Param) Fill(dst []float64, start, dt float64) {
	p.mu.Lock()
	p.fold(start)
	for i := range dst {
		dst[i] = p.valueAt(start + float64(i)*dt)
	}
	p.mu.Unlock()
}

// Len reports the number of pending events.
func (p *Param) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func apply(st segment, e event) segment {
	switch e.kind {
	case setTarget:
		return segment{t0: e.time, v0: st.value(e.time), target: e.value, tc: e.tc, approach: true}
	default:
		return segment{t0: e.time, v0: e.value}
	}
}

func (p *Param) fold(now float64) {
	n := 0
	for n < len(p.events) && p.events[n].time <= now {
		p.base = apply(p.base, p.events[n])
		n++
	}
	if n > 0 {
		p.events = append(p.events[:0], p.events[n:]...)
	}
}

func (p *Param) valueAt(t float64) float64 {
	st := p.base
	for _, e := range p.events {
		if t >= e.time {
			st = apply(st, e)
			continue
		}
		switch e.kind {
		case linearRamp:
			frac := (t - st.t0) / (e.time - st.t0)
			return st.v0 + (e.value-st.v0)*frac
		case exponentialRamp:
			if st.v0 <= 0 || e.value <= 0 {
				return st.v0
			}
			frac := (t - st.t0) / (e.time - st.t0)
			return st.v0 * math.Pow(e.value/st.v0, frac)
		}
		break
	}
	return st.value(t)
}
