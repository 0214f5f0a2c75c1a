package tts

import (
	"context"
	"errors"
	"io"
	log "log/slog"
)

// ErrDisabled is returned by a speaker that is not configured. It is not a
// failure: callers fall through to the next voice silently.
var ErrDisabled = errors.New("speaker disabled")

const TroublePrefix = "I seem to be having trouble with my voice right now. "

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Player plays an encoded audio stream to completion.
type Player interface {
	Play(ctx context.Context, r io.Reader) error
}

type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Fallback speaks with Primary and switches to Secondary when Primary is
// disabled or fails. After a failure the text is prefixed with an apology.
type Fallback struct {
	Primary   Speaker
	Secondary Speaker
}

func (f Fallback) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	err := f.Primary.Speak(ctx, text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDisabled):
		return f.Secondary.Speak(ctx, text)
	default:
		log.Warn("Primary voice failed, using fallback", "err", err)
		return f.Secondary.Speak(ctx, TroublePrefix+text)
	}
}

// Multi speaks the text on every speaker in order and joins the errors.
type Multi []Speaker

func (m Multi) Speak(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Speak(ctx, text); err != nil && !errors.Is(err, ErrDisabled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Route picks how replies reach the user: the browser when one listens
// and the local voice otherwise, or both at once when mirror is set.
func Route(browser, local Speaker, mirror bool) Speaker {
	if mirror {
		return Multi{browser, local}
	}
	return Fallback{Primary: browser, Secondary: local}
}

// Ducked lowers other audio for the duration of each utterance.
type Ducked struct {
	Speaker Speaker
	Ducker  Ducker
}

func (d Ducked) Speak(ctx context.Context, text string) error {
	if err := d.Ducker.Duck(ctx); err != nil {
		log.Warn("Failed to duck other streams", "err", err)
	}
	defer func() {
		if err := d.Ducker.Restore(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to restore other streams", "err", err)
		}
	}()

	return d.Speaker.Speak(ctx, text)
}
