//go:build !espeak

package tts

import (
	"context"
	"fmt"
	"os/exec"
)

// Espeak speaks through the espeak-ng command line tool. Build with the
// espeak tag to link libespeak-ng directly instead.
type Espeak struct {
	Voice string
	Bin   string
	run   func(ctx context.Context, name string, args ...string) error
}

func NewEspeak(voice string) *Espeak {
	if voice == "" {
		voice = "en"
	}
	return &Espeak{Voice: voice, Bin: "espeak-ng", run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (e *Espeak) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := e.run(ctx, e.Bin, "-v", e.Voice, "--", text); err != nil {
		return fmt.Errorf("%s: %w", e.Bin, err)
	}
	return nil
}
