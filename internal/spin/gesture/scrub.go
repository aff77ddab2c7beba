package gesture

import (
	"math"

	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
)

// scrubSession exists while the thumb is held.
type scrubSession struct {
	dragging   bool
	track      Bounds
	thumbWidth float64
}

// Scrub maps the thumb position along the track linearly onto the turn.
type Scrub struct {
	model   *rotation.Model
	session scrubSession
	offset  float64
}

// NewScrub creates a scrub-bar controller.
func NewScrub(m *rotation.Model) *Scrub {
	return &Scrub{model: m}
}

// Start begins dragging the thumb with the given track measurements.
func (s *Scrub) Start(track Bounds, thumbWidth float64) {
	s.session = scrubSession{dragging: true}
	s.Measure(track, thumbWidth)
}

// Measure updates the track measurements of the open session. Non-finite
// values are ignored.
func (s *Scrub) Measure(track Bounds, thumbWidth float64) {
	if finite(track.Left) && finite(track.Width) {
		s.session.track = track
	}
	if finite(thumbWidth) && thumbWidth >= 0 {
		s.session.thumbWidth = thumbWidth
	}
}

// Travel is how far the thumb can move along the track.
func (s *Scrub) Travel() float64 {
	return s.session.track.Width - s.session.thumbWidth
}

// Move positions the thumb under pointer x and sets the model angle from the
// thumb offset. It returns false when nothing was applied: no session is
// open, x is not finite, or the track leaves the thumb no room to travel.
func (s *Scrub) Move(x float64) bool {
	if !s.session.dragging || !finite(x) {
		return false
	}
	travel := s.Travel()
	if travel <= 0 || !finite(travel) {
		return false
	}

	offset := x - s.session.track.Left - s.session.thumbWidth/2
	offset = math.Max(0, math.Min(travel, offset))
	s.offset = offset

	// The right edge is exactly a full turn, which wraps to 0.
	angle := rotation.FullTurn
	if offset < travel {
		angle = math.Floor(offset * rotation.FullTurn / travel)
	}
	s.model.SetAngle(angle)
	return true
}

// End releases the thumb. The thumb keeps its last offset.
func (s *Scrub) End() {
	s.session = scrubSession{}
}

// Dragging reports whether the thumb is held.
func (s *Scrub) Dragging() bool { return s.session.dragging }

// Offset returns the thumb offset from the track's left edge.
func (s *Scrub) Offset() float64 { return s.offset }
