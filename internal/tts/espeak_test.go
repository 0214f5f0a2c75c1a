//go:build !espeak

package tts

import (
	"context"
	"slices"
	"testing"
)

func TestEspeakArgs(t *testing.T) {
	var gotName string
	var gotArgs []string

	e := NewEspeak("en-us")
	e.run = func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}

	if err := e.Speak(context.Background(), "-rf is not a flag"); err != nil {
		t.Fatal(err)
	}
	if gotName != "espeak-ng" {
		t.Errorf("bin = %q", gotName)
	}
	if want := []string{"-v", "en-us", "--", "-rf is not a flag"}; !slices.Equal(gotArgs, want) {
		t.Errorf("args = %q, want %q", gotArgs, want)
	}
}
