package bus

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jarvis/internal/notify"
	"jarvis/internal/status"
	"jarvis/internal/tts"
	"jarvis/pkg/protocol"
)

type transcript struct {
	text       string
	confidence float64
	final      bool
}

func connect(t *testing.T, h *Hub) *protocol.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := protocol.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return h.Clients() == 1 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInboundTranscripts(t *testing.T) {
	h := NewHub()
	got := make(chan transcript, 4)
	h.OnTranscript(func(text string, confidence float64, final bool) {
		got <- transcript{text, confidence, final}
	})
	listening := make(chan bool, 1)
	h.OnListening(func(active bool) { listening <- active })

	conn := connect(t, h)

	// the invalid frame is dropped without closing the connection
	conn.Write(protocol.Message{Kind: protocol.KindTranscript, Content: "  "})
	conn.Write(protocol.Message{Kind: protocol.KindListening, Active: true})
	conn.Write(protocol.Message{Kind: protocol.KindTranscript, Content: "what time is it", Confidence: 0.8, Final: true})

	select {
	case active := <-listening:
		if !active {
			t.Error("listening = false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no listening callback")
	}

	select {
	case tr := <-got:
		want := transcript{"what time is it", 0.8, true}
		if tr != want {
			t.Errorf("transcript = %+v, want %+v", tr, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript callback")
	}
}

func TestOutbound(t *testing.T) {
	h := NewHub()

	if err := h.Speak(context.Background(), "nobody home"); !errors.Is(err, tts.ErrDisabled) {
		t.Errorf("Speak() with no clients = %v, want ErrDisabled", err)
	}

	conn := connect(t, h)

	if err := h.Speak(context.Background(), "Hello, I am your assistant."); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	h.PublishStatus(status.Connected)
	h.Open("https://www.youtube.com")

	want := []protocol.Message{
		{Kind: protocol.KindSpeak, Content: "Hello, I am your assistant."},
		{Kind: protocol.KindStatus, Content: "connected"},
		{Kind: protocol.KindOpen, Content: "https://www.youtube.com"},
	}
	for _, w := range want {
		m, err := conn.ReadRaw()
		if err != nil {
			t.Fatalf("ReadRaw() error = %v", err)
		}
		if m.Kind != w.Kind || m.Content != w.Content {
			t.Errorf("got %s, want %s", m, w)
		}
		if m.Timestamp.IsZero() {
			t.Error("timestamp missing")
		}
	}
}

func TestPermissionFlow(t *testing.T) {
	h := NewHub()
	conn := connect(t, h)

	ctx := context.Background()
	if err := h.Notify(ctx, "Reminder", "stretch"); !errors.Is(err, notify.ErrPermissionDenied) {
		t.Errorf("Notify() before permission = %v", err)
	}

	result := make(chan notify.Permission, 1)
	go func() { result <- h.RequestPermission(ctx) }()

	m, err := conn.ReadRaw()
	if err != nil || m.Kind != protocol.KindPermissionRequest {
		t.Fatalf("expected permission request, got %v, %v", m, err)
	}
	conn.Write(protocol.Message{Kind: protocol.KindPermission, Content: "granted"})

	select {
	case p := <-result:
		if p != notify.PermissionGranted {
			t.Errorf("RequestPermission() = %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestPermission() did not return")
	}

	if !notify.Ensure(ctx, h) {
		t.Error("Ensure() = false after grant")
	}
	if err := h.Notify(ctx, "Reminder", "stretch"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	m, err = conn.ReadRaw()
	if err != nil || m.Kind != protocol.KindNotify || m.Title != "Reminder" || m.Content != "stretch" {
		t.Errorf("notify message = %+v, %v", m, err)
	}
}

func TestUnansweredPermissionRequestsAreDropped(t *testing.T) {
	h := NewHub()

	if p := h.RequestPermission(context.Background()); p != notify.PermissionDefault {
		t.Errorf("RequestPermission() with no clients = %q", p)
	}
	if n := h.pendingRequests(); n != 0 {
		t.Errorf("pending requests after no clients = %d", n)
	}

	conn := connect(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if p := h.RequestPermission(ctx); p != notify.PermissionDefault {
		t.Errorf("RequestPermission() unanswered = %q", p)
	}
	if n := h.pendingRequests(); n != 0 {
		t.Errorf("pending requests after timeout = %d", n)
	}

	// a late answer is still recorded
	if m, err := conn.ReadRaw(); err != nil || m.Kind != protocol.KindPermissionRequest {
		t.Fatalf("expected permission request, got %v, %v", m, err)
	}
	conn.Write(protocol.Message{Kind: protocol.KindPermission, Content: "denied"})
	waitFor(t, func() bool { return h.Permission() == notify.PermissionDenied })
}
