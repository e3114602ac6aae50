// Package device implements [audio.Capture] against the default system
// microphone using PortAudio.
//
// Opening the device retries with bounded exponential backoff; a device that
// stays unopenable surfaces [audio.ErrDeviceUnavailable] so the controller
// can substitute the synthetic backend and mark the session degraded.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/waterbook/waterbook/pkg/audio"
)

// frameQueueDepth bounds the reader/consumer queue. Pull never blocks; a slow
// consumer loses the oldest frames.
const frameQueueDepth = 16

// openRetry configures the bounded backoff used when the device fails to open.
var openRetry = struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}{attempts: 4, initial: 250 * time.Millisecond, max: 2 * time.Second}

// Capture reads frames from the default input device. The zero value is ready
// to use.
type Capture struct {
	// OnDrop, when set, is called from the reader goroutine with the number of
	// frames discarded because the consumer lagged. It must not block.
	OnDrop func(frames int)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	frames  chan audio.Frame
	rec     []float64
	cfg     audio.Config
	done    chan struct{}
}

// Start opens the default input stream and begins reading frames. PortAudio
// is initialised per capture and terminated on Stop.
func (c *Capture) Start(ctx context.Context, cfg audio.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FrameLength <= 0 {
		cfg.FrameLength = 640
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialise: %v", audio.ErrDeviceUnavailable, err)
	}

	stream, err := openWithBackoff(ctx, cfg)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: start stream: %v", audio.ErrDeviceUnavailable, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.cfg = cfg
	c.frames = make(chan audio.Frame, frameQueueDepth)
	c.rec = c.rec[:0]
	c.done = make(chan struct{})
	c.running = true

	go c.read(readCtx, stream, cfg)
	return nil
}

// openWithBackoff tries to open the default stream, sleeping between attempts.
func openWithBackoff(ctx context.Context, cfg audio.Config) (*portaudio.Stream, error) {
	buf := make([]int16, cfg.FrameLength*cfg.Channels)
	delay := openRetry.initial
	var lastErr error
	for attempt := 1; attempt <= openRetry.attempts; attempt++ {
		stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FrameLength, buf)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		slog.Warn("audio device open failed, retrying",
			"attempt", attempt, "max_attempts", openRetry.attempts, "err", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > openRetry.max {
			delay = openRetry.max
		}
	}
	return nil, fmt.Errorf("%w: open: %v", audio.ErrDeviceUnavailable, lastErr)
}

// read pumps frames from the stream until the context ends. The int16 device
// buffer is folded to normalised mono per frame.
func (c *Capture) read(ctx context.Context, stream *portaudio.Stream, cfg audio.Config) {
	defer close(c.done)
	defer func() {
		if err := stream.Stop(); err != nil {
			slog.Warn("audio stream stop error", "err", err)
		}
		if err := stream.Close(); err != nil {
			slog.Warn("audio stream close error", "err", err)
		}
		if err := portaudio.Terminate(); err != nil {
			slog.Warn("portaudio terminate error", "err", err)
		}
	}()

	buf := make([]int16, cfg.FrameLength*cfg.Channels)
	frameDur := time.Duration(float64(cfg.FrameLength) / float64(cfg.SampleRate) * float64(time.Second))
	var elapsed time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			slog.Warn("audio stream read error", "err", err)
			continue
		}
		// stream.Read fills buf in place.
		samples := foldMono(buf, cfg.Channels)

		c.mu.Lock()
		if c.running {
			c.rec = append(c.rec, samples...)
		}
		c.mu.Unlock()

		frame := audio.Frame{Samples: samples, SampleRate: cfg.SampleRate, Timestamp: elapsed}
		select {
		case c.frames <- frame:
		default:
			// Consumer lagging: drop the oldest queued frame.
			dropped := 0
			select {
			case <-c.frames:
				dropped++
			default:
			}
			select {
			case c.frames <- frame:
			default:
				dropped++
			}
			if dropped > 0 && c.OnDrop != nil {
				c.OnDrop(dropped)
			}
		}
		elapsed += frameDur
	}
}

// foldMono averages interleaved int16 channels into normalised mono samples.
func foldMono(buf []int16, channels int) []float64 {
	frames := len(buf) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf[i*channels+ch]) / 32768
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// Pull returns the most recent unread frame, or [audio.ErrNoFrame].
func (c *Capture) Pull() (audio.Frame, error) {
	c.mu.Lock()
	frames := c.frames
	running := c.running
	c.mu.Unlock()
	if !running || frames == nil {
		return audio.Frame{}, audio.ErrNoFrame
	}
	select {
	case f := <-frames:
		return f, nil
	default:
		return audio.Frame{}, audio.ErrNoFrame
	}
}

// Stop ends capture and returns the complete recorded waveform.
func (c *Capture) Stop() (audio.Waveform, error) {
	c.mu.Lock()
	if !c.running {
		w := audio.Waveform{Samples: append([]float64(nil), c.rec...), SampleRate: c.cfg.SampleRate}
		c.mu.Unlock()
		return w, nil
	}
	c.running = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	return audio.Waveform{
		Samples:    append([]float64(nil), c.rec...),
		SampleRate: c.cfg.SampleRate,
	}, nil
}
