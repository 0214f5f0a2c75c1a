package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"jarvis/internal/app"
	"jarvis/internal/assistant"
	"jarvis/internal/audio"
	"jarvis/internal/bus"
	"jarvis/internal/config"
	"jarvis/internal/ipc"
	"jarvis/internal/mixer"
	"jarvis/internal/notify"
	"jarvis/internal/proxy"
	"jarvis/internal/status"
	"jarvis/internal/tts"
	"jarvis/pkg/audioconv"
	"jarvis/pkg/stt"
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
	logLevel := cli.StringP("log", "l", "info", "Log level")
	noMic := cli.Bool("no-mic", false, "Disable microphone capture and transcription")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded config", "llm", cfg.LLM.BaseURL, "model", cfg.LLM.Model)

	httpClient, err := proxy.NewHTTPClient(cfg.LLM.Proxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.LLM.Proxy, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := bus.NewHub()
	player := audio.NewPlayer()
	desktop := notify.NewDesktop(cfg.Notifications.Enabled)

	a, err := app.New(cfg, app.Options{
		Speaker:    newSpeaker(cfg, hub, player, httpClient),
		Notifier:   pickNotifier(cfg, desktop, hub),
		Opener:     pickOpener(cfg, desktop, hub),
		Chime:      newChime(cfg, player),
		HTTPClient: httpClient,
	})
	if err != nil {
		log.Error("Failed to start assistant", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Status.OnChange(func(s status.Status) {
		log.Info("Language model status", "status", s)
		hub.PublishStatus(s)
	})

	d := a.Dispatcher
	hub.OnTranscript(func(text string, confidence float64, final bool) {
		err := d.Submit(ctx, assistant.Transcript{Text: text, Confidence: confidence, Final: final})
		if err != nil {
			log.Warn("Dropped transcript", "err", err)
		}
	})
	hub.OnListening(d.SetListening)
	hub.OnRecognitionError(func(reason string) {
		d.RecognitionFailed(errors.New(reason))
	})

	if cfg.Bus.Enabled {
		go serveBus(ctx, cfg.Bus.Addr, hub)
	}

	var ears *listener
	if !*noMic {
		ears, err = newListener(cfg)
		if err != nil {
			log.Warn("Microphone disabled", "err", err)
		} else {
			defer ears.Close()
		}
	}

	srv, err := ipc.Listen(cfg.IPC.Socket)
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", srv.Path())

	go a.Run(ctx)

	h := &controlHandler{d: d, status: a.Status, ears: ears}
	if err := srv.Serve(ctx, h.handle); err != nil {
		log.Error("IPC server stopped", "err", err)
	}

	log.Info("Shutting down")
}

// newSpeaker voices through the browser when one is connected and through
// local audio otherwise. tts.mirror uses both.
func newSpeaker(cfg *config.Config, hub *bus.Hub, player *audio.Player, httpClient *http.Client) tts.Speaker {
	eleven := tts.NewElevenLabs(tts.ElevenLabsConfig{
		APIKey:     cfg.TTS.ElevenLabs.APIKey,
		VoiceID:    cfg.TTS.ElevenLabs.VoiceID,
		Model:      cfg.TTS.ElevenLabs.Model,
		BaseURL:    cfg.TTS.ElevenLabs.BaseURL,
		Stability:  cfg.TTS.ElevenLabs.Stability,
		Similarity: cfg.TTS.ElevenLabs.Similarity,
		HTTPClient: httpClient,
	}, player)

	if !eleven.Enabled() {
		log.Info("ElevenLabs key not set, using espeak voice")
	}

	var local tts.Speaker = tts.Fallback{
		Primary:   eleven,
		Secondary: tts.NewEspeak(cfg.TTS.EspeakVoice),
	}

	if cfg.TTS.Duck.Enabled {
		local = tts.Ducked{
			Speaker: local,
			Ducker: mixer.NewDucker(mixer.Config{
				SelfNames: []string{"jarvis-daemon", "espeak-ng", "espeak"},
				Factor:    cfg.TTS.Duck.Factor,
				MinVolume: cfg.TTS.Duck.MinVolume,
				Fade:      cfg.TTS.Duck.Fade,
			}),
		}
	}

	return tts.Route(hub, local, cfg.TTS.Mirror)
}

func pickNotifier(cfg *config.Config, desktop *notify.Desktop, hub *bus.Hub) notify.Notifier {
	if cfg.Notifications.Backend == "browser" {
		return hub
	}
	return desktop
}

func pickOpener(cfg *config.Config, desktop *notify.Desktop, hub *bus.Hub) assistant.Opener {
	if cfg.Notifications.Backend == "browser" {
		return hub
	}
	return desktop
}

func newChime(cfg *config.Config, player *audio.Player) func(context.Context) {
	if cfg.Reminders.Chime == "" {
		return nil
	}
	return func(ctx context.Context) {
		if err := player.PlayFile(ctx, cfg.Reminders.Chime); err != nil {
			log.Warn("Failed to play chime", "path", cfg.Reminders.Chime, "err", err)
		}
	}
}

func serveBus(ctx context.Context, addr string, hub *bus.Hub) {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("Bus listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Bus server failed", "err", err)
	}
}

// listener pairs the microphone with the transcriber.
type listener struct {
	rec     *audio.Recorder
	whisper *stt.Transcriber
}

func newListener(cfg *config.Config) (*listener, error) {
	rec := audio.NewRecorder(audio.RecorderConfig{
		SilenceThreshold: cfg.Recorder.SilenceThreshold,
		SilenceDuration:  cfg.Recorder.SilenceDuration,
		MaxLength:        cfg.Recorder.MaxLength,
	})
	if err := rec.Init(); err != nil {
		return nil, err
	}

	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.STT.Model, stt.Options{
		Language: cfg.STT.Language,
		Threads:  cfg.STT.Threads,
	})
	if err != nil {
		rec.Close()
		return nil, err
	}

	log.Debug("Loaded whisper", "model", cfg.STT.Model)
	return &listener{rec: rec, whisper: whisper}, nil
}

func (l *listener) Close() {
	l.whisper.Close()
	l.rec.Close()
}

type controlHandler struct {
	d      *assistant.Dispatcher
	status *status.Monitor
	ears   *listener
}

func (h *controlHandler) handle(ctx context.Context, msg ipc.ControlMessage) ipc.ControlReply {
	switch msg.Cmd {
	case ipc.CmdTrigger:
		return h.trigger(ctx)
	case ipc.CmdSay:
		return h.process(ctx, msg.Text)
	case ipc.CmdFile:
		return h.file(ctx, msg.Path)
	case ipc.CmdStatus:
		return ipc.ControlReply{
			OK:    true,
			State: h.d.State().String(),
			LLM:   string(h.status.Status()),
		}
	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Fail(errors.New("unknown command: " + msg.Cmd))
	}
}

func (h *controlHandler) process(ctx context.Context, text string) ipc.ControlReply {
	if text == "" {
		return ipc.Fail(errors.New("nothing to say"))
	}
	reply, err := h.d.Ask(ctx, text)
	if err != nil {
		return ipc.Fail(err)
	}
	return ipc.ControlReply{OK: true, Transcript: text, Reply: reply.Text}
}

func (h *controlHandler) trigger(ctx context.Context) ipc.ControlReply {
	if h.ears == nil {
		return ipc.Fail(errors.New("microphone disabled"))
	}

	log.Info("Starting listening")
	h.d.SetListening(true)

	pcm, err := h.ears.rec.Record(ctx)
	h.d.SetListening(false)
	if err != nil {
		h.d.RecognitionFailed(err)
		return ipc.Fail(err)
	}

	log.Info("Recorded", "samples", len(pcm))
	return h.transcribe(ctx, pcm)
}

func (h *controlHandler) file(ctx context.Context, path string) ipc.ControlReply {
	if h.ears == nil {
		return ipc.Fail(errors.New("transcription disabled"))
	}

	pcm, err := audioconv.DecodeFile(path, audioconv.Options{MaxSamples: 60 * audioconv.TargetRate})
	if err != nil {
		log.Error("Failed to decode audio", "path", path, "err", err)
		return ipc.Fail(err)
	}
	return h.transcribe(ctx, pcm)
}

func (h *controlHandler) transcribe(ctx context.Context, pcm []float32) ipc.ControlReply {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := h.ears.whisper.Transcribe(ctx, pcm)
	if err != nil {
		log.Error("Failed to transcribe", "err", err)
		h.d.RecognitionFailed(err)
		return ipc.Fail(err)
	}

	log.Info("Transcribed", "text", res.Text, "lang", res.Language)
	return h.process(ctx, res.Text)
}
