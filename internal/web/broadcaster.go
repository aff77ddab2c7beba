package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/SpinGo/internal/spin/render"
)

// Status event kinds.
const (
	KindLog     = "log"
	KindFrame   = "frame"
	KindCapture = "capture"
)

// StatusEvent represents a single status message for SSE.
type StatusEvent struct {
	Time    string  `json:"t"`
	Kind    string  `json:"k"`
	Level   string  `json:"l,omitempty"`
	Msg     string  `json:"msg,omitempty"`
	Spinner string  `json:"spinner,omitempty"`
	Frame   int     `json:"frame,omitempty"`
	Total   int     `json:"total,omitempty"`
	Angle   float64 `json:"angle,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish stamps evt and sends it to all subscribed clients.
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Publish(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Broadcast sends a log line: {"t":"...","k":"log","l":"info","msg":"..."}
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.Publish(StatusEvent{Kind: KindLog, Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastCapture reports capture progress.
func (b *StatusBroadcaster) BroadcastCapture(frame, total int) {
	b.Publish(StatusEvent{Kind: KindCapture, Frame: frame, Total: total})
}

// FrameRenderer returns a renderer announcing the frames of a spinner.
// Angles that stay on the same frame are not re-announced.
func (b *StatusBroadcaster) FrameRenderer(spinnerID string, total int) render.Renderer {
	return &frameRenderer{b: b, spinner: spinnerID, proj: render.NewProjection(total)}
}

type frameRenderer struct {
	b       *StatusBroadcaster
	spinner string
	proj    render.Projection

	mu   sync.Mutex
	last int
}

func (f *frameRenderer) Render(angle float64) error {
	frame := f.proj.Frame(angle)
	f.mu.Lock()
	changed := frame != f.last
	f.last = frame
	f.mu.Unlock()
	if changed {
		f.b.Publish(StatusEvent{Kind: KindFrame, Spinner: f.spinner, Frame: frame, Total: f.proj.Total, Angle: angle})
	}
	return nil
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
