// Package rotation maps a rotation angle to one of a fixed number of
// evenly spaced frames around a full turn.
package rotation

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// FullTurn is one full rotation in degrees.
const FullTurn = 360.0

// slotTolerance absorbs float error so that index*anglePerImage maps back to index.
const slotTolerance = 1e-9

// ErrNoImages is returned when a model is built without frames.
var ErrNoImages = errors.New("rotation: at least one image is required")

// Direction is the sign of a relative drag step.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Model owns the current angle and frame index of one spinner.
// Invariants: 0 <= angle < 360 and index == Slot(angle) mod total.
type Model struct {
	total         int
	anglePerImage float64
	angle         float64
	index         int
}

// New creates a model for totalImages frames starting at the 1-based startFrame.
// A start frame past the last image wraps around the turn.
func New(totalImages, startFrame int) (*Model, error) {
	if totalImages < 1 {
		return nil, ErrNoImages
	}
	m := &Model{
		total:         totalImages,
		anglePerImage: FullTurn / float64(totalImages),
	}
	angle := 0.0
	if pos := startFrame - 1; pos > 0 {
		angle = float64(pos) * m.anglePerImage
	}
	m.SetAngle(angle)
	return m, nil
}

// Total returns the number of frames.
func (m *Model) Total() int { return m.total }

// AnglePerImage returns the degrees covered by one frame.
func (m *Model) AnglePerImage() float64 { return m.anglePerImage }

// Angle returns the current angle in [0, 360).
func (m *Model) Angle() float64 { return m.angle }

// Index returns the current 0-based frame index.
func (m *Model) Index() int { return m.index }

// IndexForAngle returns the 0-based frame for angle, wrapped into [0, total).
func (m *Model) IndexForAngle(angle float64) int {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0
	}
	idx := Slot(angle, m.anglePerImage) % m.total
	if idx < 0 {
		idx += m.total
	}
	return idx
}

// SetAngle moves the model to angle after normalizing it.
func (m *Model) SetAngle(angle float64) {
	m.angle = NormalizeAngle(angle)
	m.index = m.IndexForAngle(m.angle)
}

// Snap re-derives the index from the angle and puts the angle back on the
// exact start of that frame.
func (m *Model) Snap() {
	m.index = m.IndexForAngle(m.angle)
	m.angle = float64(m.index) * m.anglePerImage
}

// SetByDirection advances one frame right, one frame left, or not at all.
func (m *Model) SetByDirection(d Direction) {
	next := m.index
	switch d {
	case Right:
		next++
	case Left:
		next--
	default:
		return
	}
	m.SetAngle(float64(next) * m.anglePerImage)
}

// SetByAbsolutePosition maps a fraction of the full turn (0..1) to an angle.
func (m *Model) SetByAbsolutePosition(fraction float64) {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return
	}
	m.SetAngle(math.Floor(fraction * FullTurn))
}

// Slot is floor(angle/anglePerImage) with a small tolerance for float error.
func Slot(angle, anglePerImage float64) int {
	return int(math.Floor(angle/anglePerImage + slotTolerance))
}

// NormalizeAngle folds any angle into [0, 360). Non-finite input yields 0.
func NormalizeAngle(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0
	}
	a := math.Mod(math.Mod(angle, FullTurn)+FullTurn, FullTurn)
	if a >= FullTurn {
		// math.Mod(-tiny+360, 360) can round up to exactly 360.
		a = 0
	}
	return a
}

// ParseStartFrame converts a configured start frame to a positive 1-based
// number using integer-prefix parsing. Missing or non-numeric values give 1.
func ParseStartFrame(v any) int {
	switch n := v.(type) {
	case nil:
		return 1
	case int:
		return abs(n)
	case int64:
		return abs(int(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 1
		}
		return abs(int(n))
	case string:
		return parseIntPrefix(n)
	case interface{ String() string }:
		return parseIntPrefix(n.String())
	default:
		return 1
	}
}

func parseIntPrefix(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 1
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 1
	}
	return abs(n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
