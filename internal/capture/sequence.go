// Package capture shoots a fresh spin image set on the turntable.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/hw/camera"
	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
	"github.com/cjeanneret/SpinGo/internal/turntable"
)

// Params holds the timing of a capture run.
type Params struct {
	Settle   time.Duration // after a move, before the shot
	PostShot time.Duration // after the shot, before the next move
	// OnShot is called after each frame is shot (1-based).
	OnShot func(frame, total int)
}

// Sequence runs captures with one table and one camera.
type Sequence struct {
	table  *turntable.Turntable
	camera camera.Camera
	params Params
}

func NewSequence(t *turntable.Turntable, c camera.Camera, p Params) *Sequence {
	return &Sequence{table: t, camera: c, params: p}
}

// RunSpinCapture shoots frames evenly spaced photos: for each frame the
// table is turned to the frame angle, the motor is released and the camera
// fires. The table ends back at angle 0.
func (s *Sequence) RunSpinCapture(ctx context.Context, frames int) error {
	model, err := rotation.New(frames, 1)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	debug.Section(fmt.Sprintf("Spin capture: %d frames, %.2f° apart", frames, model.AnglePerImage()))

	_ = s.table.Hold(true)
	defer func() { _ = s.table.Hold(true) }()

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.table.RotateTo(ctx, model.Angle()); err != nil {
			return fmt.Errorf("capture: frame %d: %w", i+1, err)
		}
		if err := s.shoot(ctx); err != nil {
			return fmt.Errorf("capture: frame %d: %w", i+1, err)
		}
		debug.Shot(i+1, frames)
		if s.params.OnShot != nil {
			s.params.OnShot(i+1, frames)
		}
		model.SetByDirection(rotation.Right)
	}
	return s.table.RotateTo(ctx, model.Angle())
}

func (s *Sequence) shoot(ctx context.Context) error {
	_ = s.table.Hold(false)
	if err := sleep(ctx, s.params.Settle); err != nil {
		return err
	}
	if err := s.camera.Shoot(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, s.params.PostShot); err != nil {
		return err
	}
	return s.table.Hold(true)
}

func sleep(ctx context.Context, d time.Duration) error {
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
