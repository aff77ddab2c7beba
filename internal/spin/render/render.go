// Package render projects a rotation angle onto the frame that should be shown.
package render

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
)

// ErrFrameOutOfRange is returned when an angle maps outside the image set.
var ErrFrameOutOfRange = errors.New("render: frame out of range")

// Renderer shows the frame for an angle. Render must be idempotent.
type Renderer interface {
	Render(angle float64) error
}

// Func adapts a function to Renderer.
type Func func(angle float64) error

func (f Func) Render(angle float64) error { return f(angle) }

// Multi renders to every renderer in order and joins their errors.
type Multi []Renderer

func (m Multi) Render(angle float64) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(angle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Projection maps angles to 1-based frame ordinals.
type Projection struct {
	Total         int
	AnglePerImage float64
}

// NewProjection returns the projection for total evenly spaced frames.
func NewProjection(total int) Projection {
	if total < 1 {
		return Projection{}
	}
	return Projection{Total: total, AnglePerImage: rotation.FullTurn / float64(total)}
}

// Frame returns floor(angle/anglePerImage)+1.
func (p Projection) Frame(angle float64) int {
	if p.Total < 1 {
		return 0
	}
	return rotation.Slot(angle, p.AnglePerImage) + 1
}

// Visibility holds one visible flag per image. After a successful Render
// exactly one flag is set.
type Visibility struct {
	proj  Projection
	shown []bool
	frame int
}

// NewVisibility creates flags for total images, all hidden.
func NewVisibility(total int) *Visibility {
	if total < 0 {
		total = 0
	}
	return &Visibility{proj: NewProjection(total), shown: make([]bool, total)}
}

// Render shows the frame for angle and hides every other one. An angle
// outside [0, 360) leaves the flags untouched and reports ErrFrameOutOfRange.
func (v *Visibility) Render(angle float64) error {
	frame := v.proj.Frame(angle)
	if frame < 1 || frame > len(v.shown) {
		return fmt.Errorf("%w: angle %.3f gives frame %d of %d", ErrFrameOutOfRange, angle, frame, len(v.shown))
	}
	for i := range v.shown {
		v.shown[i] = i+1 == frame
	}
	v.frame = frame
	return nil
}

// Frame returns the visible 1-based frame, or 0 before the first render.
func (v *Visibility) Frame() int { return v.frame }

// Shown returns a copy of the visible flags.
func (v *Visibility) Shown() []bool {
	out := make([]bool, len(v.shown))
	copy(out, v.shown)
	return out
}

// VisibleCount returns how many images are visible.
func (v *Visibility) VisibleCount() int {
	n := 0
	for _, s := range v.shown {
		if s {
			n++
		}
	}
	return n
}
