package status

import (
	"context"
	"errors"
	log "log/slog"
	"slices"
	"sync"
	"time"

	"jarvis/internal/llm"
)

type Status string

const (
	Checking     Status = "checking"
	Connected    Status = "connected"
	Disconnected Status = "disconnected"
)

const DefaultInterval = 30 * time.Second

type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor tracks whether the model server is reachable. It is only ever
// overwritten, by the periodic probe or by the outcome of a real call.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu        sync.RWMutex
	status    Status
	listeners []func(Status)
}

func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		status:   Checking,
	}
}

// OnChange registers fn to be called whenever the status changes.
func (m *Monitor) OnChange(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info("Status monitor started", "interval", m.interval)

	m.Refresh(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// Refresh runs one probe and records the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.prober.Probe(ctx)
	if err != nil {
		log.Debug("Probe failed", "err", err)
	}
	return m.set(fromProbe(err))
}

// Observe records the outcome of an actual model call. A malformed
// response still proves the server is up.
func (m *Monitor) Observe(err error) Status {
	if err == nil || errors.Is(err, llm.ErrMalformedResponse) {
		return m.set(Connected)
	}
	return m.set(Disconnected)
}

func fromProbe(err error) Status {
	if err == nil {
		return Connected
	}
	return Disconnected
}

func (m *Monitor) set(s Status) Status {
	m.mu.Lock()
	prev := m.status
	m.status = s
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	if prev != s {
		log.Info("Connection status changed", "from", prev, "to", s)
		for _, fn := range listeners {
			fn(s)
		}
	}
	return s
}
