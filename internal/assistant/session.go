package assistant

import (
	"slices"
	"sync"
	"time"

	"jarvis/internal/reminder"
	"jarvis/internal/scheduler"
)

// Session holds everything one assistant session mutates. It is owned by
// the Dispatcher and handed to handlers by reference.
type Session struct {
	Store     *reminder.Store
	Log       *ConversationLog
	Scheduler *scheduler.Scheduler
	Now       func() time.Time
}

// ConversationLog is the append-only list of things the assistant said.
// Timer callbacks append to it concurrently with the dispatcher.
type ConversationLog struct {
	mu      sync.RWMutex
	entries []string
	subs    []func(string)
}

func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

func (l *ConversationLog) Append(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	subs := slices.Clone(l.subs)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(entry)
	}
}

// Subscribe calls fn with every entry appended from now on.
func (l *ConversationLog) Subscribe(fn func(string)) {
	l.mu.Lock()
	l.subs = append(l.subs, fn)
	l.mu.Unlock()
}

func (l *ConversationLog) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.entries...)
}

func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
