// Package console is the interactive text front-end: typed lines are
// handled as transcripts and everything the assistant says is printed.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"jarvis/internal/assistant"
	"jarvis/internal/status"
)

type Console struct {
	d      *assistant.Dispatcher
	status *status.Monitor
	rl     *readline.Instance
	out    io.Writer
}

func New(d *assistant.Dispatcher, monitor *status.Monitor, historyFile string) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "you> ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			return r, r != readline.CharCtrlZ
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup readline: %w", err)
	}

	c := &Console{d: d, status: monitor, rl: rl, out: rl.Stdout()}

	// Reminders fire from timers while the prompt is waiting; readline's
	// writer redraws the prompt around them.
	d.Session().Log.Subscribe(func(entry string) {
		fmt.Fprintf(c.out, "jarvis> %s\n", entry)
	})

	return c, nil
}

func (c *Console) Start(ctx context.Context) error {
	defer c.rl.Close()

	fmt.Fprintln(c.out, "J.A.R.V.I.S. ready. Type /help for commands.")

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				fmt.Fprintln(c.out, "Goodbye!")
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if cmd, args, ok := parseCommand(input); ok {
			if quit := c.handleCommand(cmd, args); quit {
				return nil
			}
			continue
		}

		// replies reach the screen through the log subscription
		if _, err := c.d.Ask(ctx, input); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("assistant stopped: %w", err)
		}
	}
}

func (c *Console) handleCommand(cmd, args string) (quit bool) {
	switch cmd {
	case "/help", "/h":
		fmt.Fprint(c.out, helpText)
	case "/reminders":
		fmt.Fprintln(c.out, c.d.Session().Store.ListReminders())
	case "/todos":
		fmt.Fprintln(c.out, c.d.Session().Store.ListTodos())
	case "/log":
		for i, e := range c.d.Session().Log.Entries() {
			fmt.Fprintf(c.out, "%3d  %s\n", i+1, e)
		}
	case "/status":
		fmt.Fprintf(c.out, "state: %s, llm: %s\n", c.d.State(), c.status.Status())
	case "/quit", "/exit", "/q":
		fmt.Fprintln(c.out, "Goodbye!")
		return true
	default:
		fmt.Fprintf(c.out, "unknown command: %s (type /help for available commands)\n", cmd)
	}
	return false
}

const helpText = `Type anything to talk to the assistant. Commands:
  /reminders   list reminders
  /todos       list to-do items
  /log         show the conversation log
  /status      show dispatcher and language model status
  /quit        leave
`

func parseCommand(input string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}

	cmd, args, _ = strings.Cut(input, " ")
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}
