package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

const DefaultPath = "~/.jarvis/config.yaml"

func DefaultConfig() map[string]any {
	return map[string]any{
		"llm": map[string]any{
			"base_url": "http://localhost:11434",
			"model":    "llama2",
			"api_key":  "ollama",
			"persona":  "",
			"timeout":  "30s",
			"proxy":    "",
		},
		"tts": map[string]any{
			"espeak_voice": "en",
			"mirror":       false,
			"elevenlabs": map[string]any{
				"api_key":    "",
				"voice_id":   "21m00Tcm4TlvDq8ikWAM",
				"model":      "eleven_monolingual_v1",
				"base_url":   "https://api.elevenlabs.io",
				"stability":  0.5,
				"similarity": 0.5,
			},
			"duck": map[string]any{
				"enabled":    true,
				"factor":     0.3,
				"min_volume": 10,
				"fade":       "300ms",
			},
		},
		"reminders": map[string]any{
			"water_interval": "60m",
			"chime":          "",
		},
		"journal": map[string]any{
			"path":       "~/.jarvis/journal.db",
			"collection": "journalEntries",
		},
		"notifications": map[string]any{
			"enabled": true,
			"backend": "desktop",
		},
		"status": map[string]any{
			"interval": "30s",
		},
		"bus": map[string]any{
			"enabled": true,
			"addr":    "127.0.0.1:8092",
		},
		"ipc": map[string]any{
			"socket": "/tmp/jarvis.sock",
		},
		"stt": map[string]any{
			"model":    "third_party/whisper.cpp/models/ggml-base.en.bin",
			"language": "en",
			"threads":  0,
		},
		"recorder": map[string]any{
			"silence_threshold": 0.015,
			"silence_duration":  "600ms",
			"max_length":        "10s",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
