package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"jarvis/internal/app"
	"jarvis/internal/config"
	"jarvis/internal/console"
	"jarvis/internal/notify"
	"jarvis/internal/tts"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	configPath := cli.StringP("config", "c", config.DefaultPath, "Config file path")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	voice := cli.BoolP("voice", "v", false, "Also speak replies with espeak")
	history := cli.String("history", "", "Readline history file")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	desktop := notify.NewDesktop(cfg.Notifications.Enabled)
	opts := app.Options{Notifier: desktop, Opener: desktop}
	if *voice {
		opts.Speaker = tts.NewEspeak(cfg.TTS.EspeakVoice)
	}

	a, err := app.New(cfg, opts)
	if err != nil {
		log.Error("Failed to start assistant", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go a.Run(ctx)

	c, err := console.New(a.Dispatcher, a.Status, *history)
	if err != nil {
		log.Error("Failed to start console", "err", err)
		os.Exit(1)
	}

	if err := c.Start(ctx); err != nil {
		log.Error("Console stopped", "err", err)
	}
}
