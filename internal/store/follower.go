package store

import (
	"context"
	"sync"
	"time"

	"github.com/zmwangx/debounce"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/spin/render"
)

// Debounce timing of follower writes.
const (
	FollowWait    = 250 * time.Millisecond
	FollowMaxWait = 2 * time.Second
)

// Follower is a renderer that saves the angle of a spinner, coalescing
// bursts of frames into a single write.
type Follower struct {
	store   *Store
	spinner string
	proj    render.Projection

	mu    sync.Mutex
	angle float64
	frame int
	dirty bool

	update func()
	flush  func()
}

// Follower returns a renderer persisting spinnerID's angle.
func (s *Store) Follower(spinnerID string, total int) *Follower {
	f := &Follower{store: s, spinner: spinnerID, proj: render.NewProjection(total)}
	update, ctrl := debounce.Debounce(f.save, FollowWait, debounce.WithMaxWait(FollowMaxWait))
	f.update = update
	f.flush = ctrl.Flush
	return f
}

func (f *Follower) Render(angle float64) error {
	f.mu.Lock()
	f.angle = angle
	f.frame = f.proj.Frame(angle)
	f.dirty = true
	f.mu.Unlock()
	f.update()
	return nil
}

// Flush writes any pending position now.
func (f *Follower) Flush() {
	f.flush()
	f.save()
}

func (f *Follower) save() {
	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return
	}
	angle, frame := f.angle, f.frame
	f.dirty = false
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.store.Save(ctx, f.spinner, angle, frame); err != nil {
		debug.Error(err)
		return
	}
	debug.Verbose("Saved %s at %.2f° (frame %d)", f.spinner, angle, frame)
}
