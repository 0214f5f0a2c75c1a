package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"jarvis/internal/journal"
	"jarvis/internal/llm"
	"jarvis/internal/nlu"
	"jarvis/internal/notify"
	"jarvis/pkg/timeparse"
)

const (
	youtubeURL = "https://youtube.com"
	waterTask  = "drink water"
)

const (
	msgGreeting       = "Hello, I am your assistant."
	msgOpeningYoutube = "Opening YouTube..."
	msgJournalSaved   = "Journal entry saved."
	msgJournalFailed  = "Sorry, I couldn't save your journal entry."
	msgReminderNoTime = "Sorry, I couldn't understand the time for your reminder."
	msgReminderNoTask = "Sorry, I couldn't understand what to remind you about."
	msgTodoEmpty      = "Sorry, I couldn't understand what to add to your list."
	msgNotifyBlocked  = " Notifications are blocked, so I can't alert you."
	msgLLMTimeout     = "Sorry, the language model took too long to respond."
	msgLLMUnreachable = "Sorry, I couldn't connect to the language model."
	msgLLMNoResponse  = "Sorry, I couldn't get a response from the language model."
)

func (d *Dispatcher) handleWaterReminder(ctx context.Context, _ nlu.Result) string {
	due := d.opts.Now().Add(d.opts.WaterInterval)

	r, err := d.session.Store.AddReminder(waterTask, due)
	if err != nil {
		return msgReminderNoTask
	}
	d.session.Scheduler.Schedule(r.Task, r.DueAt)

	return d.withDeliveryNotice(ctx, fmt.Sprintf("I'll remind you to drink water at %s.", timeparse.FormatClock(r.DueAt)))
}

func (d *Dispatcher) handleSetReminder(ctx context.Context, res nlu.Result) string {
	due, err := timeparse.Parse(res.Entities[nlu.EntityTime], d.opts.Now())
	if err != nil {
		log.Info("Could not parse reminder time", "time", res.Entities[nlu.EntityTime], "err", err)
		return msgReminderNoTime
	}

	r, err := d.session.Store.AddReminder(res.Entities[nlu.EntityTask], due)
	if err != nil {
		return msgReminderNoTask
	}
	d.session.Scheduler.Schedule(r.Task, r.DueAt)

	return d.withDeliveryNotice(ctx, fmt.Sprintf("Reminder set for '%s' at %s", r.Task, timeparse.FormatClock(r.DueAt)))
}

// withDeliveryNotice appends the blocked-notifications sentence when the
// user has refused notifications. An unanswered request or a missing
// notifier is not a refusal.
func (d *Dispatcher) withDeliveryNotice(ctx context.Context, resp string) string {
	if d.opts.Notifier == nil {
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.PermissionTimeout)
	defer cancel()

	if notify.Resolve(ctx, d.opts.Notifier) != notify.PermissionDenied {
		return resp
	}
	if !strings.HasSuffix(resp, ".") {
		resp += "."
	}
	return resp + msgNotifyBlocked
}

func (d *Dispatcher) handleJournal(ctx context.Context, res nlu.Result) string {
	if d.opts.Journal == nil {
		log.Warn("No journal store configured")
		return msgJournalFailed
	}

	entry := journal.Entry{Text: res.Entities[nlu.EntityText], Timestamp: d.opts.Now()}
	if err := d.opts.Journal.Append(ctx, entry); err != nil {
		log.Error("Failed to save journal entry", "err", err)
		return msgJournalFailed
	}
	return msgJournalSaved
}

func (d *Dispatcher) handleAddTodo(_ context.Context, res nlu.Result) string {
	item, err := d.session.Store.AddTodo(res.Entities[nlu.EntityItem])
	if err != nil {
		return msgTodoEmpty
	}
	return fmt.Sprintf("Added '%s' to your to-do list.", item.Text)
}

func (d *Dispatcher) handleListReminders(context.Context, nlu.Result) string {
	return d.session.Store.ListReminders()
}

func (d *Dispatcher) handleListTodos(context.Context, nlu.Result) string {
	return d.session.Store.ListTodos()
}

func (d *Dispatcher) handleOpenYoutube(context.Context, nlu.Result) string {
	if d.opts.Opener != nil {
		if err := d.opts.Opener.Open(youtubeURL); err != nil {
			log.Warn("Failed to open YouTube", "err", err)
		}
	}
	return msgOpeningYoutube
}

func (d *Dispatcher) handleCurrentTime(context.Context, nlu.Result) string {
	return "The time is " + timeparse.FormatClock(d.opts.Now())
}

func (d *Dispatcher) handleGreeting(context.Context, nlu.Result) string {
	return msgGreeting
}

// handleFallback forwards the verbatim transcript to the language model.
func (d *Dispatcher) handleFallback(ctx context.Context, res nlu.Result) string {
	if d.opts.LLM == nil {
		return msgLLMUnreachable
	}

	reply, err := d.opts.LLM.Chat(ctx, res.Query)
	if d.opts.Status != nil {
		d.opts.Status.Observe(err)
	}
	if err != nil {
		log.Error("Language model request failed", "err", err)
		return llmFailure(err)
	}
	return reply
}

func llmFailure(err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return msgLLMTimeout
	case errors.Is(err, llm.ErrConnectionRefused):
		return msgLLMUnreachable
	default:
		return msgLLMNoResponse
	}
}
