package notify

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os/exec"
	"sync"
)

var ErrPermissionDenied = errors.New("notification permission denied")

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Notifier delivers user-visible notifications, gated by a permission the
// user grants once.
type Notifier interface {
	Permission() Permission
	RequestPermission(ctx context.Context) Permission
	Notify(ctx context.Context, title, body string) error
}

// Desktop sends notifications through notify-send and opens URLs with
// xdg-open. Permission is granted when notifications are enabled and the
// notify-send binary is available.
type Desktop struct {
	Enabled    bool
	NotifyBin  string
	OpenBin    string
	lookPath   func(string) (string, error)
	runCommand func(ctx context.Context, name string, args ...string) error

	mu         sync.Mutex
	permission Permission
}

func NewDesktop(enabled bool) *Desktop {
	return &Desktop{
		Enabled:    enabled,
		NotifyBin:  "notify-send",
		OpenBin:    "xdg-open",
		lookPath:   exec.LookPath,
		runCommand: run,
		permission: PermissionDefault,
	}
}

func run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (d *Desktop) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

func (d *Desktop) RequestPermission(_ context.Context) Permission {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.permission != PermissionDefault {
		return d.permission
	}

	if !d.Enabled {
		d.permission = PermissionDenied
		return d.permission
	}

	if _, err := d.lookPath(d.NotifyBin); err != nil {
		log.Warn("Desktop notifications unavailable", "bin", d.NotifyBin, "err", err)
		d.permission = PermissionDenied
	} else {
		d.permission = PermissionGranted
	}
	return d.permission
}

func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	if d.Permission() != PermissionGranted {
		return ErrPermissionDenied
	}
	if err := d.runCommand(ctx, d.NotifyBin, "--app-name=jarvis", title, body); err != nil {
		return fmt.Errorf("%s: %w", d.NotifyBin, err)
	}
	return nil
}

// Open launches url in the user's browser.
func (d *Desktop) Open(url string) error {
	if err := d.runCommand(context.Background(), d.OpenBin, url); err != nil {
		return fmt.Errorf("%s: %w", d.OpenBin, err)
	}
	return nil
}

// Resolve asks for permission if it has not been decided yet and returns
// the outcome. It stays PermissionDefault when nobody answered.
func Resolve(ctx context.Context, n Notifier) Permission {
	p := n.Permission()
	if p == PermissionDefault {
		p = n.RequestPermission(ctx)
	}
	return p
}

// Ensure reports whether notifications may be sent, asking first if needed.
func Ensure(ctx context.Context, n Notifier) bool {
	return Resolve(ctx, n) == PermissionGranted
}
