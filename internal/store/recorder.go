package store

import (
	"context"
	"time"

	"github.com/cjeanneret/SpinGo/internal/spin/gesture"
)

// ViewRecorder logs widget lifetimes into the views table. It implements
// spin.Recorder and ignores input events.
type ViewRecorder struct {
	store *Store
}

// ViewRecorder returns a recorder writing to s.
func (s *Store) ViewRecorder() *ViewRecorder {
	return &ViewRecorder{store: s}
}

func (v *ViewRecorder) RecordMount(instance, spinner string, total, startFrame int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return v.store.RecordView(ctx, instance, spinner)
}

func (v *ViewRecorder) RecordEvent(string, gesture.Target, gesture.Event) error { return nil }

func (v *ViewRecorder) RecordDispose(instance string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return v.store.CloseView(ctx, instance)
}
