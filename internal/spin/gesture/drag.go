package gesture

import "github.com/cjeanneret/SpinGo/internal/spin/rotation"

// DefaultSensitivity is the horizontal distance a single move must exceed
// to count as a step.
const DefaultSensitivity = 1.0

// DragPhase is the free-drag session state.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragArmed
	DragTracking
)

func (p DragPhase) String() string {
	switch p {
	case DragArmed:
		return "armed"
	case DragTracking:
		return "tracking"
	default:
		return "idle"
	}
}

// dragSession exists between a down and its matching up.
// last is only meaningful in DragTracking.
type dragSession struct {
	phase DragPhase
	input Input
	last  Point
}

// Drag steps a rotation model one frame per qualifying move event.
// The step size never depends on how far the pointer travelled.
type Drag struct {
	model       *rotation.Model
	sensitivity float64
	session     dragSession
}

// NewDrag creates a free-drag controller. A non-positive sensitivity
// selects DefaultSensitivity.
func NewDrag(m *rotation.Model, sensitivity float64) *Drag {
	if sensitivity <= 0 || !finite(sensitivity) {
		sensitivity = DefaultSensitivity
	}
	return &Drag{model: m, sensitivity: sensitivity}
}

// Arm starts a session for input and snaps the model onto a clean frame.
// Arming while a session is open restarts it.
func (d *Drag) Arm(input Input) {
	d.model.Snap()
	d.session = dragSession{phase: DragArmed, input: input}
}

// Move feeds one position sample. It returns the direction produced; the
// model has already been advanced when the direction is not None.
func (d *Drag) Move(p Point) rotation.Direction {
	switch d.session.phase {
	case DragIdle:
		return rotation.None
	case DragArmed:
		d.session.phase = DragTracking
		d.session.last = p
		return rotation.None
	}

	dir := DirectionOf(p.X-d.session.last.X, d.sensitivity)
	d.session.last = p
	d.model.SetByDirection(dir)
	return dir
}

// Release ends the session.
func (d *Drag) Release() {
	d.session = dragSession{}
}

// Phase returns the session state.
func (d *Drag) Phase() DragPhase { return d.session.phase }

// Input returns the device family of the open session.
func (d *Drag) Input() Input { return d.session.input }

// Active reports whether a session is open (motion active).
func (d *Drag) Active() bool { return d.session.phase != DragIdle }

// DirectionOf classifies a horizontal delta against sensitivity.
func DirectionOf(deltaX, sensitivity float64) rotation.Direction {
	switch {
	case deltaX > sensitivity:
		return rotation.Right
	case deltaX < -sensitivity:
		return rotation.Left
	default:
		return rotation.None
	}
}
