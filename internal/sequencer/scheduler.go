// Package sequencer drives step playback from the audio clock with a
// lookahead loop, and turns ticks of a pattern into voice triggers.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cbegin/stepsynth-go/internal/modmath"
)

const (
	DefaultLookahead = 100 * time.Millisecond
	DefaultInterval  = 25 * time.Millisecond
	DefaultBPM       = 120.0
)

var ErrRunning = errors.New("sequencer: already running")

// Clock reports the audio clock in seconds.
type Clock interface {
	CurrentTime() float64
}

// TickFunc schedules everything for one step. at is the audio clock time the
// step should sound. Returning an error stops the transport.
type TickFunc func(tick int, at float64) error

type Options struct {
	Lookahead time.Duration
	Interval  time.Duration
	BPM       float64
	Logger    *slog.Logger
}

// Scheduler wakes every Interval and fires each step whose time falls within
// Lookahead of the audio clock.
type Scheduler struct {
	clock     Clock
	lookahead float64
	interval  time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	bpm     float64
	next    float64
	hasNext bool
	tick    int
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

func New(clock Clock, opts Options) *Scheduler {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BPM <= 0 {
		opts.BPM = DefaultBPM
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		clock:     clock,
		lookahead: opts.Lookahead.Seconds(),
		interval:  opts.Interval,
		log:       opts.Logger,
		bpm:       opts.BPM,
	}
}

// SetBPM changes the tempo from the next step on. Non-positive values are
// ignored.
func (s *Scheduler) SetBPM(bpm float64) {
	if bpm <= 0 {
		return
	}
	s.mu.Lock()
	s.bpm = bpm
	s.mu.Unlock()
}

func (s *Scheduler) BPM() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bpm
}

// Start begins firing fn from tick 0 at the clock's current time. The loop
// runs until Stop, until ctx is done, or until fn fails.
func (s *Scheduler) Start(ctx context.Context, fn TickFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.err = nil
	s.tick = 0
	s.next = s.clock.CurrentTime()
	s.hasNext = true
	go s.loop(ctx, fn, s.done)
	s.log.Info("transport started", "bpm", s.bpm, "at", s.next)
	return nil
}

// Stop halts the loop and waits for it to exit. No tick fires after Stop
// returns. It must not be called from inside the TickFunc.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// NextStepTime is the time of the next step to fire. ok is false while
// stopped.
func (s *Scheduler) NextStepTime() (at float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.hasNext
}

// Err returns the failure that stopped the last run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Scheduler) loop(ctx context.Context, fn TickFunc, done chan struct{}) {
	ticker := time.NewTicker(s.interval)
	var err error
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		s.cancel()
		s.cancel = nil
		s.hasNext = false
		s.err = err
		s.mu.Unlock()
		if err != nil {
			s.log.Error("transport stopped", "err", err)
		} else {
			s.log.Info("transport stopped")
		}
		close(done)
	}()
	for {
		if err = s.wake(ctx, fn); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// wake fires every step due before clock+lookahead.
func (s *Scheduler) wake(ctx context.Context, fn TickFunc) error {
	horizon := s.clock.CurrentTime() + s.lookahead
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.mu.Lock()
		at, tick := s.next, s.tick
		s.mu.Unlock()
		if at >= horizon {
			return nil
		}
		if err := s.fire(fn, tick, at); err != nil {
			return err
		}
		s.mu.Lock()
		s.next += modmath.SecondsPerStep(s.bpm)
		s.tick++
		s.mu.Unlock()
	}
}

func (s *Scheduler) fire(fn TickFunc, tick int, at float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sequencer: tick %d panicked: %v", tick, r)
		}
	}()
	if err := fn(tick, at); err != nil {
		return fmt.Errorf("sequencer: tick %d: %w", tick, err)
	}
	return nil
}
