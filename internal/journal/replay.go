package journal

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cjeanneret/SpinGo/internal/spin"
)

// Replayed is the visible-frame history of one instance. Frames starts
// with the mounted frame and lists every change after it.
type Replayed struct {
	Instance string `json:"instance"`
	Spinner  string `json:"spinner,omitempty"`
	Total    int    `json:"total"`
	Frames   []int  `json:"frames"`
	Events   int    `json:"events"`
	Disposed bool   `json:"disposed"`
}

// Replayer rebuilds widgets from journal entries.
type Replayer struct {
	order []string
	runs  map[string]*replayRun
	errs  []error
}

type replayRun struct {
	out Replayed
	s   *spin.Spinner
}

// NewReplayer returns an empty replayer.
func NewReplayer() *Replayer {
	return &Replayer{runs: make(map[string]*replayRun)}
}

// Apply feeds one entry. Events for unknown instances are counted as errors.
func (r *Replayer) Apply(e Entry) error {
	switch e.Kind {
	case KindMount:
		images := make([]spin.ImageRef, e.Total)
		for i := range images {
			images[i] = spin.ImageRef{Src: strconv.Itoa(i + 1)}
		}
		s, err := spin.New(images, e.Start, spin.WithID(e.Instance), spin.WithSpinnerID(e.Spinner))
		if err != nil {
			return r.fail(fmt.Errorf("mount %s: %w", e.Instance, err))
		}
		if _, dup := r.runs[e.Instance]; !dup {
			r.order = append(r.order, e.Instance)
		}
		r.runs[e.Instance] = &replayRun{
			s:   s,
			out: Replayed{Instance: e.Instance, Spinner: e.Spinner, Total: e.Total, Frames: []int{s.State().Frame}},
		}
	case KindEvent:
		run, ok := r.runs[e.Instance]
		if !ok {
			return r.fail(fmt.Errorf("event for unknown instance %s", e.Instance))
		}
		if e.Event == nil {
			return r.fail(fmt.Errorf("event entry for %s has no event", e.Instance))
		}
		run.out.Events++
		if err := run.s.Dispatch(e.Target, *e.Event); err != nil {
			return r.fail(fmt.Errorf("instance %s: %w", e.Instance, err))
		}
		if f := run.s.State().Frame; f != run.out.Frames[len(run.out.Frames)-1] {
			run.out.Frames = append(run.out.Frames, f)
		}
	case KindDispose:
		run, ok := r.runs[e.Instance]
		if !ok {
			return r.fail(fmt.Errorf("dispose of unknown instance %s", e.Instance))
		}
		run.s.Dispose()
		run.out.Disposed = true
	default:
		return r.fail(fmt.Errorf("unknown entry kind %q", e.Kind))
	}
	return nil
}

func (r *Replayer) fail(err error) error {
	r.errs = append(r.errs, err)
	return err
}

// Results returns the histories in order of first mount.
func (r *Replayer) Results() []Replayed {
	out := make([]Replayed, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.runs[id].out)
	}
	return out
}

// Err joins every error met while applying entries.
func (r *Replayer) Err() error {
	return errors.Join(r.errs...)
}

// Replay applies entries in order and returns the frame histories. Bad
// entries are skipped; their errors are joined into the returned error.
func Replay(entries []Entry) ([]Replayed, error) {
	r := NewReplayer()
	for _, e := range entries {
		_ = r.Apply(e)
	}
	return r.Results(), r.Err()
}
