// Package stepper drives the turntable motor through an A4988-style
// STEP/DIR/ENABLE driver.
package stepper

import (
	"context"
	"sync"
	"time"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/hw/gpio"
)

// Config holds the wiring and timing of the motor.
type Config struct {
	StepPin       int
	DirPin        int
	EnablePin     int // BCM pin, 0 = not wired. Active LOW.
	StepsPerRev   int
	Microstepping int
	StepDelay     time.Duration // half-cycle of a STEP pulse
}

// Stepper moves the motor and tracks its signed microstep position.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration

	mu       sync.Mutex
	position int
}

// New configures the pins and enables the driver. A zero StepDelay means 1ms.
func New(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = time.Millisecond
	}
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low)
	}
	return &Stepper{gpio: g, cfg: cfg, delay: delay}
}

// MicrostepsPerRev returns the microsteps of a full turn.
func (s *Stepper) MicrostepsPerRev() int {
	return s.cfg.StepsPerRev * s.cfg.Microstepping
}

// Move turns the motor by steps microsteps (negative = backward). It stops
// between pulses when ctx is done; the position reflects the pulses sent.
func (s *Stepper) Move(ctx context.Context, steps int) error {
	if steps == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, level, sign := "forward", gpio.High, 1
	if steps < 0 {
		dir, level, sign = "backward", gpio.Low, -1
		steps = -steps
	}
	debug.Move(steps, dir)

	if err := s.gpio.WritePin(s.cfg.DirPin, level); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.pulse(); err != nil {
			return err
		}
		s.position += sign
	}
	return nil
}

func (s *Stepper) pulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Position returns the microsteps moved since creation or the last Zero.
func (s *Stepper) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Zero declares the current position as the origin.
func (s *Stepper) Zero() {
	s.mu.Lock()
	s.position = 0
	s.mu.Unlock()
}

// Enable gives the motor holding torque.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable lets the motor freewheel; used while the camera shoots.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
