package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"strings"
)

const (
	PlaceholderAPIKey = "YOUR_ELEVENLABS_API_KEY"
	DefaultVoiceID    = "21m00Tcm4TlvDq8ikWAM"
	DefaultTTSModel   = "eleven_monolingual_v1"
	elevenLabsURL     = "https://api.elevenlabs.io"
)

type ElevenLabsConfig struct {
	APIKey     string
	VoiceID    string
	Model      string
	BaseURL    string
	Stability  float64
	Similarity float64
	HTTPClient *http.Client
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ElevenLabs synthesizes speech remotely and plays the returned MP3.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	http   *http.Client
	player Player
}

func NewElevenLabs(cfg ElevenLabsConfig, player Player) *ElevenLabs {
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.Model == "" {
		cfg.Model = DefaultTTSModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = elevenLabsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.Similarity == 0 {
		cfg.Similarity = 0.5
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &ElevenLabs{cfg: cfg, http: httpClient, player: player}
}

func (e *ElevenLabs) Enabled() bool {
	return e.cfg.APIKey != "" && e.cfg.APIKey != PlaceholderAPIKey
}

func (e *ElevenLabs) Speak(ctx context.Context, text string) error {
	if !e.Enabled() {
		return ErrDisabled
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: e.cfg.Model,
		VoiceSettings: voiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Similarity,
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.cfg.BaseURL, e.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	log.Debug("Playing synthesized speech", "voice", e.cfg.VoiceID, "chars", len(text))
	if err := e.player.Play(ctx, resp.Body); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
