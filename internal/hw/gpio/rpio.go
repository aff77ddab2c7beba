package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/SpinGo/internal/debug"
)

// RPiDriver drives the Raspberry Pi header through go-rpio.
type RPiDriver struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRPiDriver maps the GPIO memory. It needs /dev/gpiomem or root.
func NewRPiDriver() (*RPiDriver, error) {
	debug.Info("Initializing turntable GPIO (go-rpio)")
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: open: %w (are you running on a Raspberry Pi?)", err)
	}
	return &RPiDriver{pins: make(map[int]rpio.Pin)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupLocked(pin, mode)
}

func (r *RPiDriver) setupLocked(pin int, mode PinMode) error {
	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("gpio: unknown pin mode %d", mode)
	}
	r.pins[pin] = p
	return nil
}

// pin returns the line, configuring it with mode on first use.
func (r *RPiDriver) pin(n int, mode PinMode) (rpio.Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pins[n]; ok {
		return p, nil
	}
	if err := r.setupLocked(n, mode); err != nil {
		return 0, err
	}
	return r.pins[n], nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	p, err := r.pin(pin, Output)
	if err != nil {
		return err
	}
	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	p, err := r.pin(pin, Input)
	if err != nil {
		return Low, err
	}
	return p.Read() == rpio.High, nil
}

// Close returns every used line to input before unmapping.
func (r *RPiDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for n, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", n)
		p.Input()
	}
	return rpio.Close()
}
