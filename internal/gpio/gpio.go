// Package gpio connects the trigger switch and the backlight to the host's
// GPIO pins, with software stand-ins for hosts without them.
package gpio

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

func lookup(name string) (gpio.PinIO, error) {
	if err := initOnce(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %s not found", name)
	}
	return p, nil
}

// PinTrigger reads the trigger switch from an input pin; high means pressed.
type PinTrigger struct {
	pin gpio.PinIO
}

func NewPinTrigger(name string) (*PinTrigger, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", name, err)
	}
	return &PinTrigger{pin: p}, nil
}

func (t *PinTrigger) Read() bool { return t.pin.Read() == gpio.High }

// PinBacklight drives the backlight LED from an output pin.
type PinBacklight struct {
	pin gpio.PinIO
}

func NewPinBacklight(name string) (*PinBacklight, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return &PinBacklight{pin: p}, nil
}

func (b *PinBacklight) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return b.pin.Out(level)
}

// SoftTrigger is a trigger pressed from software. Each Press reads as high
// exactly once, so the display loop sees it as one rising edge.
type SoftTrigger struct {
	pending atomic.Bool
}

func (s *SoftTrigger) Press() { s.pending.Store(true) }

func (s *SoftTrigger) Read() bool { return s.pending.Swap(false) }

// AnyTrigger is pressed while any of its triggers is.
type AnyTrigger []interface{ Read() bool }

func (a AnyTrigger) Read() bool {
	pressed := false
	for _, t := range a {
		// every trigger is read so latched presses are consumed
		if t.Read() {
			pressed = true
		}
	}
	return pressed
}

// LogBacklight stands in for a missing backlight pin.
type LogBacklight struct {
	Logger *log.Logger
}

func (l LogBacklight) Set(on bool) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("Backlight on=%t", on)
	return nil
}
