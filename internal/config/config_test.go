package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.BaseURL != "http://localhost:11434" || cfg.LLM.Model != "llama2" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("llm.timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Reminders.WaterInterval != time.Hour {
		t.Errorf("water_interval = %v", cfg.Reminders.WaterInterval)
	}
	if cfg.Journal.Collection != "journalEntries" {
		t.Errorf("journal.collection = %q", cfg.Journal.Collection)
	}
	if strings.HasPrefix(cfg.Journal.Path, "~") {
		t.Errorf("journal.path not expanded: %q", cfg.Journal.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
llm:
  model: mistral
  timeout: 5s
reminders:
  water_interval: 45m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("JARVIS_LLM__BASE_URL", "http://gpu-box:11434")
	t.Setenv("JARVIS_STATUS__INTERVAL", "10s")
	t.Setenv("ELEVENLABS_API_KEY", "xi-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.Model != "mistral" || cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("file values not applied: %+v", cfg.LLM)
	}
	if cfg.Reminders.WaterInterval != 45*time.Minute {
		t.Errorf("water_interval = %v", cfg.Reminders.WaterInterval)
	}
	if cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("env base_url = %q", cfg.LLM.BaseURL)
	}
	if cfg.Status.Interval != 10*time.Second {
		t.Errorf("env status.interval = %v", cfg.Status.Interval)
	}
	if cfg.TTS.ElevenLabs.APIKey != "xi-secret" {
		t.Errorf("elevenlabs key = %q", cfg.TTS.ElevenLabs.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("Load() on a missing file = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "no model", mutate: func(c *Config) { c.LLM.Model = "" }, want: "llm.model"},
		{name: "no base url", mutate: func(c *Config) { c.LLM.BaseURL = "" }, want: "llm.base_url"},
		{name: "zero timeout", mutate: func(c *Config) { c.LLM.Timeout = 0 }, want: "llm.timeout"},
		{name: "negative interval", mutate: func(c *Config) { c.Status.Interval = -time.Second }, want: "status.interval"},
		{name: "zero water", mutate: func(c *Config) { c.Reminders.WaterInterval = 0 }, want: "water_interval"},
		{name: "backend", mutate: func(c *Config) { c.Notifications.Backend = "carrier pigeon" }, want: "notifications.backend"},
		{name: "duck factor", mutate: func(c *Config) { c.TTS.Duck.Factor = 2 }, want: "tts.duck.factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
