package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/SpinGo/internal/debug"
	"github.com/cjeanneret/SpinGo/internal/spin"
)

const (
	wsReadTimeout  = 10 * time.Minute
	wsWriteTimeout = 5 * time.Second
)

// wsReply is sent after the socket opens and after every inbound event.
type wsReply struct {
	State *spin.State `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS streams input events of one widget over a websocket. Each text
// message is one InputEvent; the widget state is written back after it is
// dispatched. Closing the socket disposes the widget.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inst, err := h.Registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	defer func() {
		if err := h.Registry.Dispose(id); err == nil {
			debug.Verbose("Widget %s closed its socket", id)
		}
	}()

	st := inst.State()
	if err := writeReply(conn, wsReply{State: &st}); err != nil {
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev InputEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			if writeReply(conn, wsReply{Error: "invalid JSON"}) != nil {
				return
			}
			continue
		}
		if err := dispatch(inst, ev); err != nil {
			if errors.Is(err, spin.ErrDisposed) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "widget disposed"),
					time.Now().Add(time.Second))
				return
			}
			if writeReply(conn, wsReply{Error: err.Error()}) != nil {
				return
			}
			continue
		}
		st := inst.State()
		if err := writeReply(conn, wsReply{State: &st}); err != nil {
			return
		}
	}
}

func writeReply(conn *websocket.Conn, reply wsReply) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(reply)
}
