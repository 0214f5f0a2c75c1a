package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "JARVIS_"

type Config struct {
	LLM           LLMConfig       `koanf:"llm"`
	TTS           TTSConfig       `koanf:"tts"`
	Reminders     RemindersConfig `koanf:"reminders"`
	Journal       JournalConfig   `koanf:"journal"`
	Notifications NotifyConfig    `koanf:"notifications"`
	Status        StatusConfig    `koanf:"status"`
	Bus           BusConfig       `koanf:"bus"`
	IPC           IPCConfig       `koanf:"ipc"`
	STT           STTConfig       `koanf:"stt"`
	Recorder      RecorderConfig  `koanf:"recorder"`
}

type LLMConfig struct {
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	APIKey  string        `koanf:"api_key"`
	Persona string        `koanf:"persona"`
	Timeout time.Duration `koanf:"timeout"`
	Proxy   string        `koanf:"proxy"` // SOCKS5 host:port, empty for direct
}

type TTSConfig struct {
	EspeakVoice string           `koanf:"espeak_voice"`
	ElevenLabs  ElevenLabsConfig `koanf:"elevenlabs"`
	Duck        DuckConfig       `koanf:"duck"`
	Mirror      bool             `koanf:"mirror"` // speak locally even when a browser is connected
}

type ElevenLabsConfig struct {
	APIKey     string  `koanf:"api_key"`
	VoiceID    string  `koanf:"voice_id"`
	Model      string  `koanf:"model"`
	BaseURL    string  `koanf:"base_url"`
	Stability  float64 `koanf:"stability"`
	Similarity float64 `koanf:"similarity"`
}

type DuckConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Factor    float64       `koanf:"factor"`
	MinVolume int           `koanf:"min_volume"`
	Fade      time.Duration `koanf:"fade"`
}

type RemindersConfig struct {
	WaterInterval time.Duration `koanf:"water_interval"`
	Chime         string        `koanf:"chime"` // mp3 played when a reminder fires
}

type JournalConfig struct {
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
}

type NotifyConfig struct {
	Enabled bool   `koanf:"enabled"`
	Backend string `koanf:"backend"` // "desktop" or "browser"
}

type StatusConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type BusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type IPCConfig struct {
	Socket string `koanf:"socket"`
}

type STTConfig struct {
	Model    string `koanf:"model"`
	Language string `koanf:"language"`
	Threads  int    `koanf:"threads"`
}

type RecorderConfig struct {
	SilenceThreshold float64       `koanf:"silence_threshold"`
	SilenceDuration  time.Duration `koanf:"silence_duration"`
	MaxLength        time.Duration `koanf:"max_length"`
}

// Load layers defaults, the YAML file at configPath (if it exists) and
// JARVIS_* environment variables, in that order. A double underscore in a
// variable name separates levels: JARVIS_LLM__BASE_URL sets llm.base_url.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		k.Set("tts.elevenlabs.api_key", key)
	}
	if voice := os.Getenv("ELEVENLABS_VOICE_ID"); voice != "" {
		k.Set("tts.elevenlabs.voice_id", voice)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Journal.Path = expandPath(cfg.Journal.Path)
	cfg.Reminders.Chime = expandPath(cfg.Reminders.Chime)
	cfg.STT.Model = expandPath(cfg.STT.Model)

	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	var errs []error

	if c.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Reminders.WaterInterval <= 0 {
		errs = append(errs, errors.New("reminders.water_interval must be positive"))
	}
	if c.Status.Interval <= 0 {
		errs = append(errs, errors.New("status.interval must be positive"))
	}
	if c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required"))
	}
	if b := c.Notifications.Backend; b != "desktop" && b != "browser" {
		errs = append(errs, fmt.Errorf("notifications.backend: unknown backend %q", b))
	}
	if c.TTS.Duck.Factor < 0 || c.TTS.Duck.Factor > 1 {
		errs = append(errs, errors.New("tts.duck.factor must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, rest)
	}

	return path
}
