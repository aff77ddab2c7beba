package camera

import (
	"context"
	"time"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/hw/gpio"
)

// Remote drives a wired remote release (FOCUS and SHUTTER lines pulled
// LOW to activate, common ground), as found on most DSLRs.
type Remote struct {
	gpio         gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration
	shutterDelay time.Duration
}

// NewRemote configures both lines as outputs, released (HIGH).
func NewRemote(g gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) *Remote {
	_ = g.SetupPin(focusPin, gpio.Output)
	_ = g.SetupPin(shutterPin, gpio.Output)
	_ = g.WritePin(focusPin, gpio.High)
	_ = g.WritePin(shutterPin, gpio.High)
	return &Remote{
		gpio:         g,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
	}
}

// Shoot focuses, fires and releases both lines. Both lines are released
// even when ctx ends during a wait.
func (r *Remote) Shoot(ctx context.Context) (err error) {
	debug.Verbose("Camera: focus pin %d, shutter pin %d", r.focusPin, r.shutterPin)
	defer func() {
		if rerr := r.release(); err == nil {
			err = rerr
		}
	}()

	if err := r.gpio.WritePin(r.focusPin, gpio.Low); err != nil {
		return err
	}
	if err := wait(ctx, r.focusDelay); err != nil {
		return err
	}
	if err := r.gpio.WritePin(r.shutterPin, gpio.Low); err != nil {
		return err
	}
	return wait(ctx, r.shutterDelay)
}

func (r *Remote) release() error {
	if err := r.gpio.WritePin(r.shutterPin, gpio.High); err != nil {
		return err
	}
	return r.gpio.WritePin(r.focusPin, gpio.High)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
