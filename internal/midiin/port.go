package midiin

import (
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Port is an open MIDI input feeding a Dispatcher.
type Port struct {
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
}

// Open finds the first input whose name contains name and starts routing its
// messages to d.
func Open(name string, d *Dispatcher, log *slog.Logger) (*Port, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list midi inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("midi input %q not found", name)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open midi input %q: %w", found.String(), err)
	}
	stop, err := midi.ListenTo(found, d.Listen(), midi.HandleError(func(err error) {
		log.Warn("midi listener error", "device", found.String(), "err", err)
	}))
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fmt.Errorf("listen on %q: %w", found.String(), err)
	}
	log.Info("midi input connected", "device", found.String())
	return &Port{driver: drv, in: found, stop: stop}, nil
}

func (p *Port) Close() error {
	p.stop()
	err := p.in.Close()
	p.driver.Close()
	return err
}
