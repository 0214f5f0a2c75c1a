package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordingSpeaker struct {
	said []string
	err  error
}

func (r *recordingSpeaker) Speak(_ context.Context, text string) error {
	r.said = append(r.said, text)
	return r.err
}

type bufferPlayer struct {
	played []byte
}

func (p *bufferPlayer) Play(_ context.Context, r io.Reader) error {
	b, err := io.ReadAll(r)
	p.played = b
	return err
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name       string
		primaryErr error
		wantLocal  []string
	}{
		{name: "primary ok", primaryErr: nil, wantLocal: nil},
		{name: "primary disabled", primaryErr: ErrDisabled, wantLocal: []string{"hello"}},
		{name: "primary failed", primaryErr: errors.New("503"), wantLocal: []string{TroublePrefix + "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &recordingSpeaker{err: tt.primaryErr}
			local := &recordingSpeaker{}
			f := Fallback{Primary: primary, Secondary: local}

			if err := f.Speak(context.Background(), "hello"); err != nil {
				t.Fatalf("Speak() error = %v", err)
			}
			if len(local.said) != len(tt.wantLocal) {
				t.Fatalf("local said %q, want %q", local.said, tt.wantLocal)
			}
			for i := range tt.wantLocal {
				if local.said[i] != tt.wantLocal[i] {
					t.Errorf("local said %q, want %q", local.said[i], tt.wantLocal[i])
				}
			}
		})
	}
}

func TestMulti(t *testing.T) {
	a := &recordingSpeaker{err: ErrDisabled}
	b := &recordingSpeaker{}
	c := &recordingSpeaker{err: errors.New("boom")}

	err := Multi{a, b, c}.Speak(context.Background(), "hi")
	if err == nil || err.Error() != "boom" {
		t.Errorf("Speak() error = %v, want boom", err)
	}
	if len(a.said) != 1 || len(b.said) != 1 || len(c.said) != 1 {
		t.Errorf("not every speaker was called")
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name        string
		mirror      bool
		browserErr  error
		wantBrowser int
		wantLocal   int
	}{
		{name: "browser connected", browserErr: nil, wantBrowser: 1, wantLocal: 0},
		{name: "no browser", browserErr: ErrDisabled, wantBrowser: 1, wantLocal: 1},
		{name: "mirror", mirror: true, wantBrowser: 1, wantLocal: 1},
		{name: "mirror without browser", mirror: true, browserErr: ErrDisabled, wantBrowser: 1, wantLocal: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			browser := &recordingSpeaker{err: tt.browserErr}
			local := &recordingSpeaker{}

			if err := Route(browser, local, tt.mirror).Speak(context.Background(), "Reminder: stretch"); err != nil {
				t.Fatalf("Speak() error = %v", err)
			}
			if len(browser.said) != tt.wantBrowser || len(local.said) != tt.wantLocal {
				t.Errorf("browser said %q, local said %q", browser.said, local.said)
			}
			for _, s := range local.said {
				if s != "Reminder: stretch" {
					t.Errorf("local said %q", s)
				}
			}
		})
	}
}

type countingDucker struct {
	ducks, restores int
}

func (d *countingDucker) Duck(context.Context) error    { d.ducks++; return nil }
func (d *countingDucker) Restore(context.Context) error { d.restores++; return nil }

func TestDuckedRestoresOnError(t *testing.T) {
	ducker := &countingDucker{}
	s := Ducked{Speaker: &recordingSpeaker{err: errors.New("fail")}, Ducker: ducker}

	if err := s.Speak(context.Background(), "hi"); err == nil {
		t.Error("expected error")
	}
	if ducker.ducks != 1 || ducker.restores != 1 {
		t.Errorf("ducks=%d restores=%d", ducker.ducks, ducker.restores)
	}
}

func TestElevenLabsDisabled(t *testing.T) {
	for _, key := range []string{"", PlaceholderAPIKey} {
		e := NewElevenLabs(ElevenLabsConfig{APIKey: key}, &bufferPlayer{})
		if e.Enabled() {
			t.Errorf("Enabled() with key %q", key)
		}
		if err := e.Speak(context.Background(), "hi"); !errors.Is(err, ErrDisabled) {
			t.Errorf("Speak() error = %v, want ErrDisabled", err)
		}
	}
}

func TestElevenLabsSpeak(t *testing.T) {
	var got synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "secret" || r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("headers = %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	player := &bufferPlayer{}
	e := NewElevenLabs(ElevenLabsConfig{APIKey: "secret", VoiceID: "voice-1", BaseURL: srv.URL}, player)

	if err := e.Speak(context.Background(), "Hello there"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if string(player.played) != "ID3fake" {
		t.Errorf("played = %q", player.played)
	}
	if got.Text != "Hello there" || got.ModelID != DefaultTTSModel {
		t.Errorf("request = %+v", got)
	}
	if got.VoiceSettings.Stability != 0.5 || got.VoiceSettings.SimilarityBoost != 0.5 {
		t.Errorf("voice settings = %+v", got.VoiceSettings)
	}
}

func TestElevenLabsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer srv.Close()

	player := &bufferPlayer{}
	local := &recordingSpeaker{}
	voice := Fallback{
		Primary:   NewElevenLabs(ElevenLabsConfig{APIKey: "secret", BaseURL: srv.URL}, player),
		Secondary: local,
	}

	if err := voice.Speak(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if player.played != nil {
		t.Error("player should not run on error status")
	}
	if len(local.said) != 1 || local.said[0] != TroublePrefix+"hi" {
		t.Errorf("local said %q", local.said)
	}
}
