package assistant

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jarvis/internal/journal"
	"jarvis/internal/nlu"
	"jarvis/internal/notify"
	"jarvis/internal/reminder"
	"jarvis/internal/scheduler"
	"jarvis/internal/status"
)

var ErrQueueClosed = errors.New("dispatcher closed")

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

type JournalWriter interface {
	Append(ctx context.Context, e journal.Entry) error
}

type Opener interface {
	Open(url string) error
}

type StatusObserver interface {
	Observe(err error) status.Status
}

// Options wires the dispatcher to its collaborators. Nil collaborators are
// treated as unavailable.
type Options struct {
	LLM      Chatter
	Speaker  Speaker
	Journal  JournalWriter
	Notifier notify.Notifier
	Opener   Opener
	Status   StatusObserver

	// Chime runs when a reminder fires, before it is spoken.
	Chime func(ctx context.Context)

	WaterInterval time.Duration
	QueueSize     int
	SpeakTimeout  time.Duration
	Now           func() time.Time

	// PermissionTimeout bounds the wait for a notification permission
	// answer while a reminder is being confirmed.
	PermissionTimeout time.Duration
}

type State int32

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "idle"
}

// Transcript is a recognized utterance. Only final transcripts are
// processed; confidence is informational.
type Transcript struct {
	Text       string
	Confidence float64
	Final      bool
}

type Reply struct {
	Intent nlu.Intent
	Text   string
}

// job is a queued transcript. reply, when set, receives the outcome.
type job struct {
	text  string
	reply chan Reply
}

type handlerFunc func(ctx context.Context, res nlu.Result) string

// Dispatcher runs one command at a time: classify, handle, record, speak.
type Dispatcher struct {
	session  *Session
	matcher  *nlu.Matcher
	opts     Options
	handlers map[nlu.Intent]handlerFunc

	queue     chan job
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	state     atomic.Int32
	listening atomic.Bool
}

func New(opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WaterInterval <= 0 {
		opts.WaterInterval = time.Hour
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.SpeakTimeout <= 0 {
		opts.SpeakTimeout = time.Minute
	}
	if opts.PermissionTimeout <= 0 {
		opts.PermissionTimeout = 5 * time.Second
	}

	d := &Dispatcher{
		matcher: nlu.NewMatcher(),
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
		closed:  make(chan struct{}),
	}

	d.session = &Session{
		Store: reminder.NewStore(),
		Log:   NewConversationLog(),
		Now:   opts.Now,
	}
	d.session.Scheduler = scheduler.New(d.deliver, scheduler.WithClock(opts.Now))

	d.handlers = map[nlu.Intent]handlerFunc{
		nlu.WaterReminder: d.handleWaterReminder,
		nlu.JournalEntry:  d.handleJournal,
		nlu.SetReminder:   d.handleSetReminder,
		nlu.AddTodo:       d.handleAddTodo,
		nlu.ListReminders: d.handleListReminders,
		nlu.ListTodos:     d.handleListTodos,
		nlu.OpenYoutube:   d.handleOpenYoutube,
		nlu.CurrentTime:   d.handleCurrentTime,
		nlu.Greeting:      d.handleGreeting,
		nlu.Fallback:      d.handleFallback,
	}

	return d
}

func (d *Dispatcher) Session() *Session {
	return d.session
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) SetListening(on bool) {
	d.listening.Store(on)
}

func (d *Dispatcher) Listening() bool {
	return d.listening.Load()
}

// RecognitionFailed clears the capture state after a speech recognition
// error. No transcript was finalized, so nothing else changes.
func (d *Dispatcher) RecognitionFailed(err error) {
	log.Warn("Speech recognition failed", "err", err)
	d.listening.Store(false)
}

// Submit queues a transcript for the worker started by Run. Transcripts
// are handled in arrival order.
func (d *Dispatcher) Submit(ctx context.Context, t Transcript) error {
	if !t.Final {
		log.Debug("Ignoring interim transcript", "text", t.Text)
		return nil
	}
	if strings.TrimSpace(t.Text) == "" {
		return nil
	}

	if err := d.enqueue(ctx, job{text: t.Text}); err != nil {
		return err
	}
	log.Debug("Transcript queued", "text", t.Text, "confidence", t.Confidence)
	return nil
}

// Ask queues text behind earlier transcripts and waits for its reply.
func (d *Dispatcher) Ask(ctx context.Context, text string) (Reply, error) {
	j := job{text: text, reply: make(chan Reply, 1)}
	if err := d.enqueue(ctx, j); err != nil {
		return Reply{}, err
	}

	select {
	case r := <-j.reply:
		return r, nil
	case <-d.closed:
		return Reply{}, ErrQueueClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, j job) error {
	select {
	case <-d.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case d.queue <- j:
		return nil
	case <-d.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued transcripts until ctx is done or Close is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.closed:
			return nil
		case j := <-d.queue:
			r := d.Process(ctx, j.text)
			if j.reply != nil {
				j.reply <- r
			}
		}
	}
}

// Close stops accepting transcripts and cancels pending reminders.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
		d.session.Scheduler.Stop()
	})
}

// Process handles one transcript to completion and returns the response.
// Concurrent callers are serialized.
func (d *Dispatcher) Process(ctx context.Context, text string) Reply {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Store(int32(Processing))
	defer d.state.Store(int32(Idle))

	res := d.matcher.Match(text)
	log.Info("Matched", "intent", res.Intent, "entities", res.Entities)

	handler, ok := d.handlers[res.Intent]
	if !ok {
		handler = d.handleFallback
	}

	resp := handler(ctx, res)
	d.respond(ctx, resp)

	return Reply{Intent: res.Intent, Text: resp}
}

func (d *Dispatcher) respond(ctx context.Context, text string) {
	d.session.Log.Append(text)
	d.speak(ctx, text)
}

func (d *Dispatcher) speak(ctx context.Context, text string) {
	if d.opts.Speaker == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.SpeakTimeout)
	defer cancel()

	if err := d.opts.Speaker.Speak(ctx, text); err != nil {
		log.Error("Failed to voice out", "err", err)
	}
}

// deliver runs on the timer goroutine when a reminder comes due.
func (d *Dispatcher) deliver(n scheduler.Notification) {
	ctx := context.Background()
	msg := n.Message()

	d.session.Log.Append(msg)

	if d.opts.Chime != nil {
		d.opts.Chime(ctx)
	}
	d.speak(ctx, msg)

	if d.opts.Notifier != nil && d.opts.Notifier.Permission() == notify.PermissionGranted {
		if err := d.opts.Notifier.Notify(ctx, "Reminder", n.Task); err != nil {
			log.Warn("Failed to send notification", "err", err)
		}
	}
}
