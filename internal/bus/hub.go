// Package bus serves the browser front-end. The browser recognizes speech
// and sends transcripts; the assistant sends back text to speak, status
// changes and notifications.
package bus

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"jarvis/internal/notify"
	"jarvis/internal/status"
	"jarvis/internal/tts"
	"jarvis/pkg/protocol"
)

const sendBuffer = 16

type TranscriptFunc func(text string, confidence float64, final bool)

type client struct {
	conn *protocol.Conn
	send chan protocol.Message
}

// Hub tracks connected browsers and fans messages out to all of them.
type Hub struct {
	upgrader websocket.Upgrader

	mu         sync.Mutex
	clients    map[*client]struct{}
	permission notify.Permission
	waiters    []chan notify.Permission

	onTranscript TranscriptFunc
	onListening  func(active bool)
	onError      func(reason string)
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		permission: notify.PermissionDefault,
	}
}

// Callbacks must be registered before the hub serves connections.
func (h *Hub) OnTranscript(fn TranscriptFunc)     { h.onTranscript = fn }
func (h *Hub) OnListening(fn func(active bool))   { h.onListening = fn }
func (h *Hub) OnRecognitionError(fn func(string)) { h.onError = fn }

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Upgrade failed", "err", err)
		return
	}

	c := &client{conn: protocol.Wrap(ws), send: make(chan protocol.Message, sendBuffer)}
	h.register(c)
	log.Info("Browser connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(c, done)

	defer func() {
		h.unregister(c)
		close(done)
		c.conn.Close()
		log.Info("Browser disconnected", "remote", r.RemoteAddr)
	}()

	for {
		m, err := c.conn.Read()
		if err != nil {
			if protocol.IsClosed(err) || !errors.Is(err, protocol.ErrInvalid) {
				return
			}
			log.Warn("Dropping bad frame", "err", err)
			continue
		}
		h.dispatch(m)
	}
}

func (h *Hub) writeLoop(c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case m := <-c.send:
			if err := c.conn.Write(m); err != nil {
				log.Warn("Write to browser failed", "err", err)
				return
			}
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) dispatch(m *protocol.Message) {
	switch m.Kind {
	case protocol.KindTranscript:
		if h.onTranscript != nil {
			h.onTranscript(m.Content, m.Confidence, m.Final)
		}
	case protocol.KindListening:
		if h.onListening != nil {
			h.onListening(m.Active)
		}
	case protocol.KindError:
		if h.onError != nil {
			h.onError(m.Content)
		}
	case protocol.KindPermission:
		h.setPermission(notify.Permission(m.Content))
	}
}

// Broadcast queues m for every connected browser and reports how many
// received it. Slow clients whose buffer is full miss the message.
func (h *Hub) Broadcast(m protocol.Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for c := range h.clients {
		select {
		case c.send <- m:
			n++
		default:
			log.Warn("Browser send buffer full, dropping", "kind", m.Kind)
		}
	}
	return n
}

// Speak asks the browsers to voice text. With nobody connected it reports
// tts.ErrDisabled so other voices still run.
func (h *Hub) Speak(_ context.Context, text string) error {
	if h.Broadcast(protocol.Message{Kind: protocol.KindSpeak, Content: text}) == 0 {
		return tts.ErrDisabled
	}
	return nil
}

func (h *Hub) PublishStatus(s status.Status) {
	h.Broadcast(protocol.Message{Kind: protocol.KindStatus, Content: string(s)})
}

func (h *Hub) Open(url string) error {
	h.Broadcast(protocol.Message{Kind: protocol.KindOpen, Content: url})
	return nil
}

func (h *Hub) Permission() notify.Permission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.permission
}

// RequestPermission asks the browsers for notification permission and
// waits for the first answer. The permission stays default if nobody
// answers before ctx is done.
func (h *Hub) RequestPermission(ctx context.Context) notify.Permission {
	h.mu.Lock()
	if h.permission != notify.PermissionDefault {
		p := h.permission
		h.mu.Unlock()
		return p
	}
	// Registered before the request goes out so a fast answer is not lost.
	ch := make(chan notify.Permission, 1)
	h.waiters = append(h.waiters, ch)
	h.mu.Unlock()
	defer h.dropWaiter(ch)

	if h.Broadcast(protocol.Message{Kind: protocol.KindPermissionRequest}) == 0 {
		return notify.PermissionDefault
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	select {
	case p := <-ch:
		return p
	case <-ctx.Done():
		return h.Permission()
	}
}

func (h *Hub) dropWaiter(ch chan notify.Permission) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waiters = slices.DeleteFunc(h.waiters, func(w chan notify.Permission) bool { return w == ch })
}

func (h *Hub) pendingRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters)
}

func (h *Hub) setPermission(p notify.Permission) {
	switch p {
	case notify.PermissionGranted, notify.PermissionDenied, notify.PermissionDefault:
	default:
		log.Warn("Unknown permission value", "value", p)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.permission = p
	for _, w := range h.waiters {
		w <- p
	}
	h.waiters = nil
}

func (h *Hub) Notify(_ context.Context, title, body string) error {
	if h.Permission() != notify.PermissionGranted {
		return notify.ErrPermissionDenied
	}
	h.Broadcast(protocol.Message{Kind: protocol.KindNotify, Title: title, Content: body})
	return nil
}
