// Package synthetic provides a deterministic audio capture backend.
//
// It is used two ways: as the configured capture backend when the
// installation runs without a microphone (demos, development), and as the
// fallback the session controller substitutes when the real device cannot be
// opened. The generated signal is quiet wideband noise with a faint low
// hum, so downstream feature extraction degrades gracefully instead of
// producing pathological values.
package synthetic

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/waterbook/waterbook/pkg/audio"
)

// frameQueueDepth bounds the producer/consumer queue between the generator
// goroutine and Pull. Old frames are dropped when the consumer lags.
const frameQueueDepth = 16

// Capture implements [audio.Capture] with generated audio. The zero value is
// ready to use; Seed may be set before Start for reproducible streams.
type Capture struct {
	// Seed initialises the noise generator. Two captures with equal Seed and
	// config produce identical streams.
	Seed uint64

	// Amplitude scales the generated noise. Defaults to 0.01 (near-silence).
	Amplitude float64

	// OnDrop, when set, is called from the generator goroutine with the number
	// of frames discarded because the consumer lagged. It must not block.
	OnDrop func(frames int)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	frames  chan audio.Frame
	rec     []float64
	cfg     audio.Config
	done    chan struct{}
}

// Start begins generating frames at the real-time cadence implied by cfg.
func (c *Capture) Start(ctx context.Context, cfg audio.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if cfg.FrameLength <= 0 {
		cfg.FrameLength = 640
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 32000
	}
	genCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.cfg = cfg
	c.frames = make(chan audio.Frame, frameQueueDepth)
	c.rec = c.rec[:0]
	c.done = make(chan struct{})
	c.running = true

	go c.generate(genCtx)
	return nil
}

// generate produces one frame per frame-duration tick until the context ends.
func (c *Capture) generate(ctx context.Context) {
	defer close(c.done)

	frameDur := time.Duration(float64(c.cfg.FrameLength) / float64(c.cfg.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	state := c.Seed
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	amp := c.Amplitude
	if amp == 0 {
		amp = 0.01
	}

	var elapsed time.Duration
	var sampleIdx int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		samples := make([]float64, c.cfg.FrameLength)
		for i := range samples {
			// xorshift noise plus a faint 60 Hz hum.
			state ^= state << 13
			state ^= state >> 7
			state ^= state << 17
			noise := (float64(state%2000)/1000 - 1) * amp
			hum := 0.2 * amp * math.Sin(2*math.Pi*60*float64(sampleIdx)/float64(c.cfg.SampleRate))
			samples[i] = noise + hum
			sampleIdx++
		}

		c.mu.Lock()
		if c.running {
			c.rec = append(c.rec, samples...)
		}
		c.mu.Unlock()

		frame := audio.Frame{Samples: samples, SampleRate: c.cfg.SampleRate, Timestamp: elapsed}
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

// Pull returns the next generated frame, or [audio.ErrNoFrame] when the
// generator has not produced one since the last call.
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

// Stop ends generation and returns everything generated since Start.
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
