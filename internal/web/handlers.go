package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cjeanneret/SpinGo/internal/frames"
	"github.com/cjeanneret/SpinGo/internal/registry"
	"github.com/cjeanneret/SpinGo/internal/spin"
	"github.com/cjeanneret/SpinGo/internal/spin/gesture"
	"github.com/cjeanneret/SpinGo/internal/store"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// MaxCaptureFrames bounds the frame count of a capture run.
const MaxCaptureFrames = 720

// RunCaptureFunc shoots a spin set of frames images.
// It is called from the POST /capture handler in a goroutine.
type RunCaptureFunc func(ctx context.Context, frames int) error

// PositionStore returns the last saved position of a catalog spinner.
type PositionStore interface {
	Load(ctx context.Context, spinnerID string) (store.Position, error)
}

// FormConfig holds default values for the capture form (from config).
type FormConfig struct {
	CaptureEnabled bool `json:"capture_enabled"`
	CaptureFrames  int  `json:"capture_frames"`
}

// Deps are the collaborators of the HTTP handlers.
type Deps struct {
	Broadcaster *StatusBroadcaster
	Registry    *registry.Registry
	Catalog     *frames.Catalog
	// Positions, when set, gives page widgets the last saved frame as
	// their start frame.
	Positions    PositionStore
	RunCapture   RunCaptureFunc // nil: POST /capture returns 503
	FormDefaults FormConfig
}

// CaptureRequest is the body of POST /capture.
type CaptureRequest struct {
	Frames int `json:"frames"`
}

// PositionRequest is the body of PUT /instances/{id}/position.
type PositionRequest struct {
	Fraction float64 `json:"fraction"`
}

// InputEvent is one raw input event tagged with the element it hit.
type InputEvent struct {
	Target gesture.Target `json:"target"`
	gesture.Event
}

// Validate checks the target and the event type.
func (e InputEvent) Validate() error {
	if !e.Target.Valid() {
		return fmt.Errorf("%w: target %q", gesture.ErrUnknownEvent, e.Target)
	}
	return e.Event.Validate()
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Deps
	runningMu sync.Mutex
	running   bool
	staticFS  fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(deps Deps, staticFS fs.FS) *Handlers {
	if deps.Broadcaster == nil {
		deps.Broadcaster = NewStatusBroadcaster()
	}
	return &Handlers{Deps: deps, staticFS: staticFS}
}

// ValidateCapture checks the requested frame count.
func ValidateCapture(req CaptureRequest) error {
	if req.Frames < 1 || req.Frames > MaxCaptureFrames {
		return fmt.Errorf("frames must be between 1 and %d", MaxCaptureFrames)
	}
	return nil
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// HandleSpinners lists the catalog.
func (h *Handlers) HandleSpinners(w http.ResponseWriter, r *http.Request) {
	entries := []*frames.Entry{}
	if h.Catalog != nil {
		entries = h.Catalog.Entries()
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleFrame serves GET /frames/{spinner}/{n} as WebP.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(r.PathValue("spinner"))
	if !ok {
		http.Error(w, "unknown spinner", http.StatusNotFound)
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 || n > entry.Frames {
		http.Error(w, "frame out of range", http.StatusNotFound)
		return
	}
	data, err := entry.Set().WebP(n)
	if err != nil {
		log.Printf("frame %s/%d: %v", entry.ID, n, err)
		http.Error(w, "frame unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// HandleCreateInstance mounts a headless widget over a catalog spinner.
// The optional body {"currImage": n} overrides the start frame.
func (h *Handlers) HandleCreateInstance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(r.PathValue("spinner"))
	if !ok {
		http.Error(w, "unknown spinner", http.StatusNotFound)
		return
	}
	start := h.startFrame(r.Context(), entry)
	var opts spin.Options
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if opts.CurrImage != nil {
		start = opts.StartFrame()
	}
	inst, err := h.Registry.Create(entry.ID, entry.Images(), start)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst.State())
}

// HandleInstances lists the live widgets.
func (h *Handlers) HandleInstances(w http.ResponseWriter, r *http.Request) {
	list := h.Registry.List()
	states := make([]spin.State, 0, len(list))
	for _, inst := range list {
		states = append(states, inst.State())
	}
	writeJSON(w, http.StatusOK, states)
}

// HandleInstance returns one widget state.
func (h *Handlers) HandleInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst.State())
}

// HandleDispose disposes a widget.
func (h *Handlers) HandleDispose(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Dispose(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents dispatches a batch of input events in order and returns the
// resulting state. The batch stops at the first failing event.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var batch []InputEvent
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	for i, ev := range batch {
		if err := dispatch(inst, ev); err != nil {
			writeError(w, fmt.Errorf("event %d: %w", i, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, inst.State())
}

// HandlePosition moves a widget to a fraction of the full turn.
func (h *Handlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req PositionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if math.IsNaN(req.Fraction) || math.IsInf(req.Fraction, 0) {
		http.Error(w, "fraction must be finite", http.StatusBadRequest)
		return
	}
	if err := inst.SetPosition(req.Fraction); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst.State())
}

// HandleCapture handles POST /capture to shoot a new spin set.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CaptureRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateCapture(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunCapture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		if err := h.RunCapture(context.Background(), req.Frames); err != nil {
			h.Broadcaster.Broadcast("error", "Capture failed: "+err.Error())
			log.Printf("capture failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", fmt.Sprintf("Capture complete: %d frames", req.Frames))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) entry(id string) (*frames.Entry, bool) {
	if h.Catalog == nil {
		return nil, false
	}
	return h.Catalog.Get(id)
}

// startFrame is the saved frame of entry when positions are kept,
// otherwise its configured start frame.
func (h *Handlers) startFrame(ctx context.Context, entry *frames.Entry) int {
	if h.Positions == nil {
		return entry.StartFrame
	}
	p, err := h.Positions.Load(ctx, entry.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("restore %s: %v", entry.ID, err)
		}
		return entry.StartFrame
	}
	return p.Frame
}

func dispatch(inst *registry.Instance, ev InputEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return inst.Dispatch(ev.Target, ev.Event)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, spin.ErrDisposed):
		status = http.StatusGone
	case errors.Is(err, spin.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, gesture.ErrUnknownEvent), errors.Is(err, spin.ErrConfig):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("web: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
