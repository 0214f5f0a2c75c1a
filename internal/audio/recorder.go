package audio

import (
	"context"
	"errors"
	log "log/slog"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// SampleRate is what whisper expects.
const SampleRate = 16000

var ErrNoSpeech = errors.New("no speech recorded")

type RecorderConfig struct {
	SilenceThreshold float64       // frame RMS above which a frame counts as speech
	SilenceDuration  time.Duration // trailing silence that ends an utterance
	MaxLength        time.Duration
}

// Recorder captures one utterance from the default input device.
type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = 0.015
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = 600 * time.Millisecond
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 10 * time.Second
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record waits for speech and returns mono 16 kHz samples once the speaker
// has been silent for SilenceDuration, MaxLength elapses or ctx is done.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	const frameSize = SampleRate / 50 // 20ms
	frameDur := time.Second / 50

	buf := make([]float32, frameSize)
	out := make([]float32, 0, SampleRate*3)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	var (
		speaking bool
		silence  time.Duration
	)

	maxFrames := int(r.cfg.MaxLength / frameDur)

	for range maxFrames {
		if ctx.Err() != nil {
			break
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}

		if frameRMS(buf) > r.cfg.SilenceThreshold {
			speaking = true
			silence = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			silence += frameDur
			if silence >= r.cfg.SilenceDuration {
				break
			}
			out = append(out, buf...)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSpeech
	}

	log.Debug("Captured utterance", "samples", len(out))
	return out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
