package gesture

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownEvent is returned for event types or targets the widget does not handle.
var ErrUnknownEvent = errors.New("gesture: unknown event")

// Type is a raw input event type, named after the DOM events it mirrors.
type Type string

const (
	MouseDown  Type = "mousedown"
	MouseMove  Type = "mousemove"
	MouseUp    Type = "mouseup"
	TouchStart Type = "touchstart"
	TouchMove  Type = "touchmove"
	TouchEnd   Type = "touchend"
)

// Input is the device family an event comes from.
type Input int

const (
	Pointer Input = iota
	Touch
)

func (i Input) String() string {
	if i == Touch {
		return "touch"
	}
	return "pointer"
}

// Input returns the device family of t.
func (t Type) Input() Input {
	switch t {
	case TouchStart, TouchMove, TouchEnd:
		return Touch
	default:
		return Pointer
	}
}

// Valid reports whether t is one of the handled event types.
func (t Type) Valid() bool {
	switch t {
	case MouseDown, MouseMove, MouseUp, TouchStart, TouchMove, TouchEnd:
		return true
	}
	return false
}

// Target is the element an event was delivered to.
type Target string

const (
	Overlay  Target = "overlay"
	Thumb    Target = "thumb"
	Document Target = "document"
)

// Valid reports whether t is a known target.
func (t Target) Valid() bool {
	switch t {
	case Overlay, Thumb, Document:
		return true
	}
	return false
}

// Point is a viewport position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the horizontal extent of the scrub track.
type Bounds struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Event is one raw input event. Pointer events carry X/Y, touch events carry
// their active touch points. Scrub events may carry the measured track
// bounds and thumb width.
type Event struct {
	Type       Type    `json:"type"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Touches    []Point `json:"touches,omitempty"`
	Track      *Bounds `json:"track,omitempty"`
	ThumbWidth float64 `json:"thumb_width,omitempty"`
}

// Position returns the event position, reading the first touch point for
// touch events. ok is false when the event carries no usable position.
func (e Event) Position() (p Point, ok bool) {
	if e.Type.Input() == Touch {
		if len(e.Touches) == 0 {
			return Point{}, false
		}
		p = e.Touches[0]
	} else {
		p = Point{X: e.X, Y: e.Y}
	}
	if !finite(p.X) || !finite(p.Y) {
		return Point{}, false
	}
	return p, true
}

// Validate checks the event type.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrUnknownEvent, e.Type)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
