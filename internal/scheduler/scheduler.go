package scheduler

import (
	log "log/slog"
	"sync"
	"time"
)

// Notification is what a fired timer hands to the callback.
type Notification struct {
	Task  string
	DueAt time.Time
}

// Message is the text announced when the notification fires.
func (n Notification) Message() string {
	return "Reminder: " + n.Task
}

type FireFunc func(Notification)

// Scheduler arranges one-shot callbacks for reminders. Each scheduled
// notification fires at most once, no earlier than its due time.
type Scheduler struct {
	fire FireFunc
	now  func() time.Time

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*time.Timer
	stopped bool
}

type Option func(*Scheduler)

// WithClock overrides the time source used to compute delays.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func New(fire FireFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		fire:    fire,
		now:     time.Now,
		pending: make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token identifies a scheduled notification.
type Token struct {
	id uint64
	s  *Scheduler
}

// Cancel revokes the notification. It reports whether the callback was
// still pending.
func (t Token) Cancel() bool {
	if t.s == nil {
		return false
	}

	t.s.mu.Lock()
	timer, ok := t.s.pending[t.id]
	delete(t.s.pending, t.id)
	t.s.mu.Unlock()

	if !ok {
		return false
	}
	timer.Stop()
	return true
}

// Schedule registers a notification for task at dueAt. Past-due reminders
// are ignored and report false.
func (s *Scheduler) Schedule(task string, dueAt time.Time) (Token, bool) {
	delay := dueAt.Sub(s.now())
	if delay <= 0 {
		log.Debug("Reminder already due, not scheduling", "task", task, "due", dueAt)
		return Token{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return Token{}, false
	}

	s.nextID++
	id := s.nextID
	n := Notification{Task: task, DueAt: dueAt}

	s.pending[id] = time.AfterFunc(delay, func() {
		if !s.claim(id) {
			return
		}
		log.Info("Reminder due", "task", n.Task)
		s.fire(n)
	})

	log.Debug("Reminder scheduled", "task", task, "delay", delay)
	return Token{id: id, s: s}, true
}

// claim removes id from the pending set; only the caller that removes it
// may deliver.
func (s *Scheduler) claim(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

// Pending returns the number of notifications still waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending notification and rejects new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
	s.stopped = true
}
