// Package turntable turns the physical product table to widget angles.
package turntable

import (
	"context"
	"math"
	"sync"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/hw/stepper"
	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
)

// Motor is the part of the stepper the turntable uses.
type Motor interface {
	Move(ctx context.Context, steps int) error
	Position() int
	MicrostepsPerRev() int
	Enable() error
	Disable() error
}

var _ Motor = (*stepper.Stepper)(nil)

// Turntable converts angles to microsteps and moves the motor by the
// shortest signed distance. Angle 0 is the motor position at creation.
type Turntable struct {
	motor Motor
	rev   int

	mu sync.Mutex
}

// New wraps motor. The motor must report a positive microstep count per turn.
func New(motor Motor) *Turntable {
	return &Turntable{motor: motor, rev: motor.MicrostepsPerRev()}
}

// StepsPerDegree returns the microsteps of one degree.
func (t *Turntable) StepsPerDegree() float64 {
	return float64(t.rev) / rotation.FullTurn
}

// StepsFromAngle converts an angle in degrees to the nearest microstep count.
func (t *Turntable) StepsFromAngle(deg float64) int {
	return int(math.Round(deg * t.StepsPerDegree()))
}

// Angle returns the table angle in [0, 360).
func (t *Turntable) Angle() float64 {
	pos := floorMod(t.motor.Position(), t.rev)
	return rotation.NormalizeAngle(float64(pos) / t.StepsPerDegree())
}

// Delta returns the signed microsteps from the current position to angle,
// in (-rev/2, rev/2].
func (t *Turntable) Delta(angle float64) int {
	target := floorMod(t.StepsFromAngle(rotation.NormalizeAngle(angle)), t.rev)
	cur := floorMod(t.motor.Position(), t.rev)
	d := floorMod(target-cur, t.rev)
	if d > t.rev/2 {
		d -= t.rev
	}
	return d
}

// RotateTo turns the table to angle the short way round.
func (t *Turntable) RotateTo(ctx context.Context, angle float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	steps := t.Delta(angle)
	if steps == 0 {
		return nil
	}
	debug.Verbose("Turntable: %.2f° -> %.2f° (%d steps)", t.Angle(), rotation.NormalizeAngle(angle), steps)
	return t.motor.Move(ctx, steps)
}

// Hold enables or releases the motor's holding torque.
func (t *Turntable) Hold(on bool) error {
	if on {
		return t.motor.Enable()
	}
	return t.motor.Disable()
}

func floorMod(a, n int) int {
	if n <= 0 {
		return 0
	}
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
