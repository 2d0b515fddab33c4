// Package midiin routes incoming MIDI messages to the engine's live voice
// controls for the selected instrument.
package midiin

import (
	"log/slog"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/stepsynth-go/internal/model"
)

// Target receives translated MIDI input.
type Target interface {
	NoteOn(inst *model.Instrument, note, velocity int) error
	NoteOff(note int) bool
	PitchBend(inst *model.Instrument, value float64)
	ControlChange(inst *model.Instrument, cc, value int)
}

// Dispatcher translates messages for whatever instrument Instrument returns
// at the time each message arrives.
type Dispatcher struct {
	Target     Target
	Instrument func() *model.Instrument
	Logger     *slog.Logger
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// BendValue maps a 14-bit pitch wheel position onto [-1, 1).
func BendValue(abs uint16) float64 {
	return (float64(abs) - 8192) / 8192
}

// Handle dispatches one message. Note-offs always reach the target; other
// messages arriving with no instrument selected are dropped.
func (d *Dispatcher) Handle(msg midi.Message) error {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	if msg.GetNoteEnd(&ch, &key) {
		d.Target.NoteOff(int(key))
		return nil
	}
	inst := d.Instrument()
	if inst == nil {
		d.logger().Debug("no instrument selected", "msg", msg.String())
		return nil
	}
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return d.Target.NoteOn(inst, int(key), int(vel))
	case msg.GetControlChange(&ch, &cc, &val):
		d.Target.ControlChange(inst, int(cc), int(val))
	case msg.GetPitchBend(&ch, &rel, &abs):
		d.Target.PitchBend(inst, BendValue(abs))
	default:
		d.logger().Debug("ignored midi message", "msg", msg.String())
	}
	return nil
}

// Listen returns a callback suitable for midi.ListenTo. Errors are logged.
func (d *Dispatcher) Listen() func(msg midi.Message, timestampms int32) {
	return func(msg midi.Message, timestampms int32) {
		if err := d.Handle(msg); err != nil {
			d.logger().Error("midi note-on failed", "err", err)
		}
	}
}
