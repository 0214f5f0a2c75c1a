package reminder

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"jarvis/pkg/timeparse"
)

var ErrEmpty = errors.New("empty text")

// Reminder is a task due at a point in time.
type Reminder struct {
	Task  string    `json:"task"`
	DueAt time.Time `json:"due_at"`
}

// TodoItem is an entry on the to-do list.
type TodoItem struct {
	Text string `json:"text"`
}

// Store keeps the session's reminders and to-do items in insertion order.
// Nothing is ever removed.
type Store struct {
	mu        sync.RWMutex
	reminders []Reminder
	todos     []TodoItem
}

func NewStore() *Store {
	return &Store{}
}

// AddReminder appends a reminder for the trimmed task.
func (s *Store) AddReminder(task string, dueAt time.Time) (Reminder, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Reminder{}, fmt.Errorf("reminder: %w", ErrEmpty)
	}

	r := Reminder{Task: task, DueAt: dueAt}

	s.mu.Lock()
	s.reminders = append(s.reminders, r)
	s.mu.Unlock()

	return r, nil
}

// AddTodo appends a to-do item with the trimmed text.
func (s *Store) AddTodo(text string) (TodoItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TodoItem{}, fmt.Errorf("todo: %w", ErrEmpty)
	}

	item := TodoItem{Text: text}

	s.mu.Lock()
	s.todos = append(s.todos, item)
	s.mu.Unlock()

	return item, nil
}

// Snapshot returns copies of both collections.
func (s *Store) Snapshot() ([]Reminder, []TodoItem) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Reminder(nil), s.reminders...), append([]TodoItem(nil), s.todos...)
}

// Reminders yields "'task' at 3:04:05 PM" for each reminder. Every
// iteration starts from a fresh snapshot.
func (s *Store) Reminders() iter.Seq[string] {
	return func(yield func(string) bool) {
		reminders, _ := s.Snapshot()
		for _, r := range reminders {
			if !yield(fmt.Sprintf("'%s' at %s", r.Task, timeparse.FormatClock(r.DueAt))) {
				return
			}
		}
	}
}

// Todos yields "'text'" for each to-do item.
func (s *Store) Todos() iter.Seq[string] {
	return func(yield func(string) bool) {
		_, todos := s.Snapshot()
		for _, t := range todos {
			if !yield(fmt.Sprintf("'%s'", t.Text)) {
				return
			}
		}
	}
}

// ListReminders renders the reminders as one spoken sentence.
func (s *Store) ListReminders() string {
	parts := slices.Collect(s.Reminders())
	if len(parts) == 0 {
		return "You have no reminders."
	}
	return "Your reminders: " + strings.Join(parts, "; ")
}

// ListTodos renders the to-do list as one spoken sentence.
func (s *Store) ListTodos() string {
	parts := slices.Collect(s.Todos())
	if len(parts) == 0 {
		return "Your to-do list is empty."
	}
	return "Your to-do list: " + strings.Join(parts, ", ")
}
