// Package mixer lowers the volume of other applications' PulseAudio
// streams while the assistant is speaking and restores it afterwards.
package mixer

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// SinkInput is one playback stream as reported by pactl.
type SinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// Runner executes pactl. It returns stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

type Config struct {
	SelfNames []string // application.name values that are never ducked
	Factor    float64
	MinVolume int
	Fade      time.Duration
}

// Ducker fades every stream not belonging to SelfNames down to
// Factor of its volume and back. Duck and Restore are idempotent.
type Ducker struct {
	cfg Config
	run Runner

	mu       sync.Mutex
	active   bool
	original map[int]int
}

func NewDucker(cfg Config) *Ducker {
	return newDucker(cfg, pactl)
}

func newDucker(cfg Config, run Runner) *Ducker {
	cfg.MinVolume = clamp(cfg.MinVolume)
	if cfg.Factor <= 0 || cfg.Factor > 1 {
		cfg.Factor = 0.3
	}
	return &Ducker{
		cfg:      cfg,
		run:      run,
		original: make(map[int]int),
	}
}

func (d *Ducker) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)
	var fades []fade

	for _, in := range inputs {
		if d.isSelf(in) {
			continue
		}

		to := math.Round(float64(in.Volume) * d.cfg.Factor)
		d.original[in.ID] = in.Volume
		fades = append(fades, fade{
			id:   in.ID,
			from: in.Volume,
			to:   max(int(to), d.cfg.MinVolume),
		})
	}

	if err := d.apply(ctx, fades); err != nil {
		return err
	}

	log.Debug("Ducked streams", "count", len(fades))
	d.active = true
	return nil
}

// Restore fades ducked streams back to their original volume. Streams
// that appeared after Duck are left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		orig, ok := d.original[in.ID]
		if !ok || d.isSelf(in) {
			continue
		}
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
	}

	if err := d.apply(ctx, fades); err != nil {
		return err
	}

	d.original = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(in SinkInput) bool {
	return slices.Contains(d.cfg.SelfNames, in.AppName)
}

func (d *Ducker) list(ctx context.Context) ([]SinkInput, error) {
	out, err := d.run(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return ParseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	arg := fmt.Sprintf("%d%%", clamp(percent))
	if _, err := d.run(ctx, "set-sink-input-volume", strconv.Itoa(id), arg); err != nil {
		return fmt.Errorf("set volume id=%d: %w", id, err)
	}
	return nil
}

// apply steps every stream linearly from its current to its target volume
// over the configured fade duration.
func (d *Ducker) apply(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := max(int(d.cfg.Fade/minStep), 1)
	if d.cfg.Fade <= 0 {
		steps = 0
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}

		for _, f := range fades {
			v := float64(f.from) + float64(f.to-f.from)*frac
			if err := d.setVolume(ctx, f.id, int(math.Round(v))); err != nil {
				return err
			}
		}

		if i < steps {
			time.Sleep(d.cfg.Fade / time.Duration(steps))
		}
	}

	return nil
}

// ParseSinkInputs extracts stream ids, volumes and application names from
// `pactl list sink-inputs` output.
func ParseSinkInputs(out string) []SinkInput {
	parts := strings.Split(out, "Sink Input #")
	var res []SinkInput

	for _, block := range parts[1:] {
		nl := strings.IndexByte(block, '\n')
		if nl <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:nl]))
		if err != nil {
			continue
		}

		in := SinkInput{ID: id}
		volumeSeen := false

		for line := range strings.Lines(block[nl+1:]) {
			line = strings.TrimSpace(line)

			switch {
			case strings.HasPrefix(line, "Volume:") && !volumeSeen:
				if m := percentRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
					volumeSeen = true
				}
			case strings.HasPrefix(line, "application.name =") && in.AppName == "":
				if _, rest, ok := strings.Cut(line, `"`); ok {
					in.AppName, _, _ = strings.Cut(rest, `"`)
				}
			}
		}

		if !volumeSeen && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}

	return res
}

func clamp(v int) int {
	return min(max(v, 0), maxVolume)
}
