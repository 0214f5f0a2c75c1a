// Package app assembles the assistant core shared by the console and the
// daemon: language model client, status monitor, journal and dispatcher.
package app

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"jarvis/internal/assistant"
	"jarvis/internal/config"
	"jarvis/internal/journal"
	"jarvis/internal/llm"
	"jarvis/internal/notify"
	"jarvis/internal/proxy"
	"jarvis/internal/status"
)

// Options supplies the front-end specific collaborators.
type Options struct {
	Speaker  assistant.Speaker
	Notifier notify.Notifier
	Opener   assistant.Opener
	Chime    func(ctx context.Context)

	// HTTPClient is used for the language model. When nil a client honoring
	// llm.proxy is created.
	HTTPClient *http.Client
}

type App struct {
	Config     *config.Config
	HTTP       *http.Client
	LLM        *llm.Client
	Status     *status.Monitor
	Journal    *journal.Store
	Dispatcher *assistant.Dispatcher
}

func New(cfg *config.Config, opts Options) (*App, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		c, err := proxy.NewHTTPClient(cfg.LLM.Proxy)
		if err != nil {
			return nil, err
		}
		httpClient = c
	}

	client := llm.New(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		Persona:    cfg.LLM.Persona,
		Timeout:    cfg.LLM.Timeout,
		HTTPClient: httpClient,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	store, err := journal.Open(cfg.Journal.Path, cfg.Journal.Collection)
	if err != nil {
		return nil, err
	}

	monitor := status.NewMonitor(client, cfg.Status.Interval)

	d := assistant.New(assistant.Options{
		LLM:           client,
		Speaker:       opts.Speaker,
		Journal:       store,
		Notifier:      opts.Notifier,
		Opener:        opts.Opener,
		Status:        monitor,
		Chime:         opts.Chime,
		WaterInterval: cfg.Reminders.WaterInterval,
	})

	return &App{
		Config:     cfg,
		HTTP:       httpClient,
		LLM:        client,
		Status:     monitor,
		Journal:    store,
		Dispatcher: d,
	}, nil
}

// Run drives the status poll and the transcript queue until ctx is done.
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Go(func() {
		if err := a.Status.Run(ctx); err != nil {
			log.Warn("Status monitor stopped", "err", err)
		}
	})
	wg.Go(func() {
		a.Dispatcher.Run(ctx)
	})

	wg.Wait()
}

func (a *App) Close() {
	a.Dispatcher.Close()
	if err := a.Journal.Close(); err != nil {
		log.Warn("Failed to close journal", "err", err)
	}
}
