package web

import (
	"encoding/json"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func expectSilence(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Errorf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// ---------- Log events ----------

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("error", "hello")

	evt := recv(t, ch)
	if evt.Kind != KindLog || evt.Level != "error" || evt.Msg != "hello" {
		t.Errorf("event = %+v", evt)
	}
	if evt.Time == "" {
		t.Error("event should have a timestamp")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.BroadcastMsg("multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := recv(t, ch); evt.Msg != "multi" || evt.Level != "info" {
			t.Errorf("subscriber %d: event = %+v", i, evt)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	// must not panic
	b.BroadcastMsg("after unsub")
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 70; i++ {
		b.BroadcastMsg("fill")
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}
	if count != 64 {
		t.Errorf("expected 64 buffered messages, got %d", count)
	}
}

func TestBroadcastWriter(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	line := "  [spingo] trimmed message  \n"
	n, err := w.Write([]byte(line))
	if err != nil || n != len(line) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if evt := recv(t, ch); evt.Msg != "[spingo] trimmed message" {
		t.Errorf("msg = %q", evt.Msg)
	}

	w.Write([]byte("   \n"))
	expectSilence(t, ch)
}

// ---------- Frame and capture events ----------

func TestFrameRenderer_AnnouncesFrameChanges(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	r := b.FrameRenderer("shoe", 4)
	if err := r.Render(90); err != nil {
		t.Fatal(err)
	}
	evt := recv(t, ch)
	if evt.Kind != KindFrame || evt.Spinner != "shoe" || evt.Frame != 2 || evt.Total != 4 || evt.Angle != 90 {
		t.Errorf("event = %+v", evt)
	}

	// 120° is still frame 2.
	_ = r.Render(120)
	expectSilence(t, ch)

	_ = r.Render(0)
	if evt := recv(t, ch); evt.Frame != 1 {
		t.Errorf("frame = %d, want 1", evt.Frame)
	}
}

func TestBroadcastCapture(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.BroadcastCapture(3, 24)
	if evt := recv(t, ch); evt.Kind != KindCapture || evt.Frame != 3 || evt.Total != 24 {
		t.Errorf("event = %+v", evt)
	}
}
