// Package gpio abstracts the turntable's GPIO lines.
package gpio

import (
	"sync"

	"github.com/cjeanneret/SpinGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver controls GPIO lines. The Raspberry Pi driver and the mock both
// implement it.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// Write is one recorded WritePin call.
type Write struct {
	Pin   int
	Level Level
}

// MockDriver keeps pin levels in memory and records every write.
// It is used when no Raspberry Pi is present and in tests.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	writes []Write
	closed bool
}

// NewMockDriver returns a mock with every pin low.
func NewMockDriver() *MockDriver {
	return &MockDriver{modes: make(map[int]PinMode), levels: make(map[int]Level)}
}

// NewDriver returns the mock when mock is true, the go-rpio driver otherwise.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (no turntable hardware)")
		return NewMockDriver(), nil
	}
	return NewRPiDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	m.writes = append(m.writes, Write{Pin: pin, Level: level})
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Writes returns the recorded writes, optionally only those of pins.
func (m *MockDriver) Writes(pins ...int) []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Write
	for _, w := range m.writes {
		if len(pins) == 0 || containsPin(pins, w.Pin) {
			out = append(out, w)
		}
	}
	return out
}

// Pulses counts low-to-high transitions written to pin.
func (m *MockDriver) Pulses(pin int) int {
	n := 0
	prev := Low
	for _, w := range m.Writes(pin) {
		if w.Level == High && prev == Low {
			n++
		}
		prev = w.Level
	}
	return n
}

// Mode returns the configured mode of pin.
func (m *MockDriver) Mode(pin int) (PinMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[pin]
	return mode, ok
}

// Reset forgets the recorded writes.
func (m *MockDriver) Reset() {
	m.mu.Lock()
	m.writes = nil
	m.mu.Unlock()
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func containsPin(pins []int, pin int) bool {
	for _, p := range pins {
		if p == pin {
			return true
		}
	}
	return false
}
