package turntable

import (
	"context"
	"errors"
	"sync"

	"github.com/cjeanneret/SpinGo/internal/debug"
)

// Follower is a renderer that makes the table follow a widget. Render
// never blocks: only the latest angle is kept and a background loop
// rotates to it.
type Follower struct {
	table   *Turntable
	pending chan float64

	mu      sync.Mutex
	lastErr error
}

// NewFollower returns a follower; Run must be started for it to move.
func NewFollower(t *Turntable) *Follower {
	return &Follower{table: t, pending: make(chan float64, 1)}
}

func (f *Follower) Render(angle float64) error {
	for {
		select {
		case f.pending <- angle:
			return nil
		default:
		}
		// Drop the stale target.
		select {
		case <-f.pending:
		default:
		}
	}
}

// Run moves the table until ctx is done.
func (f *Follower) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case angle := <-f.pending:
			err := f.table.RotateTo(ctx, angle)
			if err != nil && !errors.Is(err, context.Canceled) {
				debug.Error(err)
			}
			f.mu.Lock()
			f.lastErr = err
			f.mu.Unlock()
		}
	}
}

// Err returns the result of the latest move.
func (f *Follower) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
