// Package spin assembles the 360° spin widget: a rotation model driven by a
// free-drag controller on the image overlay and a scrub-bar controller on
// the thumb, rendered through a Renderer.
package spin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/spin/gesture"
	"github.com/cjeanneret/SpinGo/internal/spin/render"
	"github.com/cjeanneret/SpinGo/internal/spin/rotation"
)

var (
	// ErrDisposed is returned when a disposed widget receives input.
	ErrDisposed = errors.New("spin: widget disposed")
	// ErrBusy is returned by SetPosition while a drag or scrub is open.
	ErrBusy = errors.New("spin: gesture session in progress")
)

// Recorder receives the input stream of a widget (e.g. a journal).
type Recorder interface {
	RecordMount(instance, spinner string, total, startFrame int) error
	RecordEvent(instance string, target gesture.Target, ev gesture.Event) error
	RecordDispose(instance string) error
}

// Recorders fans a widget's stream out to several recorders.
type Recorders []Recorder

func (rs Recorders) RecordMount(instance, spinner string, total, startFrame int) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordMount(instance, spinner, total, startFrame))
	}
	return errors.Join(errs...)
}

func (rs Recorders) RecordEvent(instance string, target gesture.Target, ev gesture.Event) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordEvent(instance, target, ev))
	}
	return errors.Join(errs...)
}

func (rs Recorders) RecordDispose(instance string) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordDispose(instance))
	}
	return errors.Join(errs...)
}

// session is the gesture that currently owns the rotation state.
type session int

const (
	sessionNone session = iota
	sessionDrag
	sessionScrub
)

func (s session) String() string {
	switch s {
	case sessionDrag:
		return "drag"
	case sessionScrub:
		return "scrub"
	default:
		return "none"
	}
}

// State is a snapshot of a widget.
type State struct {
	ID          string  `json:"id"`
	Spinner     string  `json:"spinner,omitempty"`
	Total       int     `json:"total"`
	Angle       float64 `json:"angle"`
	Index       int     `json:"index"`
	Frame       int     `json:"frame"`
	ThumbOffset float64 `json:"thumb_offset"`
	Motion      bool    `json:"motion"`
	Scrubbing   bool    `json:"scrubbing"`
}

// Option configures a Spinner.
type Option func(*Spinner)

// WithID sets the instance id.
func WithID(id string) Option {
	return func(s *Spinner) { s.id = id }
}

// WithSpinnerID sets the catalog id the instance was built from.
func WithSpinnerID(id string) Option {
	return func(s *Spinner) { s.spinnerID = id }
}

// WithSensitivity sets the free-drag step threshold.
func WithSensitivity(v float64) Option {
	return func(s *Spinner) { s.sensitivity = v }
}

// WithRenderer adds a renderer after the built-in visibility flags.
func WithRenderer(r render.Renderer) Option {
	return func(s *Spinner) {
		if r != nil {
			s.extra = append(s.extra, r)
		}
	}
}

// WithRecorder records mounts, events and disposal.
func WithRecorder(r Recorder) Option {
	return func(s *Spinner) { s.recorder = r }
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Spinner) { s.now = now }
}

// Spinner is one mounted widget instance. All methods are safe for
// concurrent use; input is processed one event at a time in arrival order.
type Spinner struct {
	mu sync.Mutex

	id          string
	spinnerID   string
	images      []ImageRef
	sensitivity float64

	model      *rotation.Model
	visibility *render.Visibility
	extra      []render.Renderer
	renderer   render.Renderer

	drag      *gesture.Drag
	scrub     *gesture.Scrub
	listeners *gesture.Listeners
	dragMove  gesture.Handle
	scrubMove []gesture.Handle
	active    session

	recorder Recorder
	now      func() time.Time
	lastUsed time.Time
	disposed bool
}

// New builds a widget over images and renders the configured start frame.
func New(images []ImageRef, startFrame int, opts ...Option) (*Spinner, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrConfig, rotation.ErrNoImages)
	}
	model, err := rotation.New(len(images), startFrame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	s := &Spinner{
		images:      append([]ImageRef(nil), images...),
		sensitivity: gesture.DefaultSensitivity,
		model:       model,
		visibility:  render.NewVisibility(len(images)),
		listeners:   gesture.NewListeners(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.drag = gesture.NewDrag(model, s.sensitivity)
	s.scrub = gesture.NewScrub(model)
	s.renderer = append(render.Multi{s.visibility}, s.extra...)
	s.lastUsed = s.now()
	s.attach()

	if s.recorder != nil {
		if err := s.recorder.RecordMount(s.id, s.spinnerID, len(images), startFrame); err != nil {
			debug.Error(fmt.Errorf("record mount %s: %w", s.id, err))
		}
	}
	if err := s.render(); err != nil {
		return nil, err
	}
	debug.Mounted(s.id, s.spinnerID, len(images), s.visibility.Frame())
	return s, nil
}

// NewFromOptions builds a widget from resolved options; images must be
// non-empty.
func NewFromOptions(o Options, opts ...Option) (*Spinner, error) {
	return New(o.Images, o.StartFrame(), opts...)
}

// attach registers the permanent listeners. Move listeners are attached by
// the down handlers for the duration of a session.
func (s *Spinner) attach() {
	s.listeners.On(gesture.Overlay, gesture.MouseDown, s.armDrag)
	s.listeners.On(gesture.Overlay, gesture.TouchStart, s.armDrag)
	s.listeners.On(gesture.Document, gesture.MouseUp, s.releaseDrag)
	s.listeners.On(gesture.Document, gesture.TouchEnd, s.releaseDrag)

	s.listeners.On(gesture.Thumb, gesture.MouseDown, s.startScrub)
	s.listeners.On(gesture.Thumb, gesture.TouchStart, s.startScrub)
	s.listeners.On(gesture.Document, gesture.MouseUp, s.endScrub)
	s.listeners.On(gesture.Document, gesture.TouchEnd, s.endScrub)
}

// Dispatch delivers one input event to the widget.
func (s *Spinner) Dispatch(target gesture.Target, ev gesture.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	s.lastUsed = s.now()
	debug.Input(s.id, string(target), string(ev.Type), ev.X, ev.Y)
	if s.recorder != nil {
		if err := s.recorder.RecordEvent(s.id, target, ev); err != nil {
			debug.Error(fmt.Errorf("record event %s: %w", s.id, err))
		}
	}
	return s.listeners.Dispatch(target, ev)
}

func (s *Spinner) armDrag(ev gesture.Event) error {
	if s.active == sessionScrub {
		return nil
	}
	input := ev.Type.Input()
	moveType := gesture.MouseMove
	if input == gesture.Touch {
		moveType = gesture.TouchMove
	}

	s.dragMove.Remove()
	s.drag.Arm(input)
	s.active = sessionDrag
	s.dragMove = s.listeners.On(gesture.Overlay, moveType, s.dragMoved)
	debug.Session(s.id, "drag", "armed ("+input.String()+")")
	return nil
}

func (s *Spinner) dragMoved(ev gesture.Event) error {
	p, ok := ev.Position()
	if !ok {
		return nil
	}
	if dir := s.drag.Move(p); dir != rotation.None {
		return s.render()
	}
	return nil
}

// releaseDrag ends the drag on any up or end event, whichever device
// armed it.
func (s *Spinner) releaseDrag(gesture.Event) error {
	if !s.drag.Active() {
		return nil
	}
	s.drag.Release()
	s.dragMove.Remove()
	s.dragMove = gesture.Handle{}
	if s.active == sessionDrag {
		s.active = sessionNone
	}
	debug.Session(s.id, "drag", "released")
	return nil
}

func (s *Spinner) startScrub(ev gesture.Event) error {
	if s.active == sessionDrag {
		return nil
	}
	var track gesture.Bounds
	if ev.Track != nil {
		track = *ev.Track
	}
	s.scrub.Start(track, ev.ThumbWidth)
	s.active = sessionScrub

	s.removeScrubMoves()
	s.scrubMove = []gesture.Handle{
		s.listeners.On(gesture.Document, gesture.MouseMove, s.scrubMoved),
		s.listeners.On(gesture.Document, gesture.TouchMove, s.scrubMoved),
	}
	debug.Session(s.id, "scrub", "dragging")
	return nil
}

func (s *Spinner) scrubMoved(ev gesture.Event) error {
	if ev.Track != nil {
		s.scrub.Measure(*ev.Track, ev.ThumbWidth)
	}
	p, ok := ev.Position()
	if !ok {
		return nil
	}
	if s.scrub.Move(p.X) {
		return s.render()
	}
	return nil
}

func (s *Spinner) endScrub(gesture.Event) error {
	if !s.scrub.Dragging() {
		return nil
	}
	s.scrub.End()
	s.removeScrubMoves()
	if s.active == sessionScrub {
		s.active = sessionNone
	}
	debug.Session(s.id, "scrub", "released")
	return nil
}

func (s *Spinner) removeScrubMoves() {
	for _, h := range s.scrubMove {
		h.Remove()
	}
	s.scrubMove = nil
}

func (s *Spinner) render() error {
	angle := s.model.Angle()
	if err := s.renderer.Render(angle); err != nil {
		return fmt.Errorf("render widget %s: %w", s.id, err)
	}
	debug.Frame(s.id, s.visibility.Frame(), s.model.Total(), angle)
	return nil
}

// SetPosition moves the widget to a fraction (0..1) of the full turn.
// It is refused while a gesture session is open.
func (s *Spinner) SetPosition(fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	if s.active != sessionNone {
		return fmt.Errorf("%w: %s", ErrBusy, s.active)
	}
	s.lastUsed = s.now()
	s.model.SetByAbsolutePosition(fraction)
	return s.render()
}

// State returns a snapshot of the widget.
func (s *Spinner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:          s.id,
		Spinner:     s.spinnerID,
		Total:       s.model.Total(),
		Angle:       s.model.Angle(),
		Index:       s.model.Index(),
		Frame:       s.visibility.Frame(),
		ThumbOffset: s.scrub.Offset(),
		Motion:      s.drag.Active(),
		Scrubbing:   s.scrub.Dragging(),
	}
}

// Visible returns the visible flag of every image.
func (s *Spinner) Visible() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibility.Shown()
}

// Images returns the image list.
func (s *Spinner) Images() []ImageRef {
	return append([]ImageRef(nil), s.images...)
}

// ID returns the instance id.
func (s *Spinner) ID() string { return s.id }

// SpinnerID returns the catalog id, if any.
func (s *Spinner) SpinnerID() string { return s.spinnerID }

// Listeners returns the number of attached listeners.
func (s *Spinner) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners.Len()
}

// IdleSince returns the time of the last input.
func (s *Spinner) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Dispose detaches every listener. Further input returns ErrDisposed.
func (s *Spinner) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.drag.Release()
	s.scrub.End()
	s.active = sessionNone
	s.listeners.Clear()
	s.dragMove = gesture.Handle{}
	s.scrubMove = nil
	if s.recorder != nil {
		if err := s.recorder.RecordDispose(s.id); err != nil {
			debug.Error(fmt.Errorf("record dispose %s: %w", s.id, err))
		}
	}
	debug.Info("Widget %s disposed", s.id)
}
