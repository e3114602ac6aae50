package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/waterbook/waterbook/pkg/audio"
)

// GuardedCapture wraps the physical capture backend with a [Breaker] and a
// standby backend. Start never leaves the session without audio: when the
// device fails or its breaker is open, the standby takes over and the session
// is marked degraded. The microphone is reacquired on every session start, so
// each Start doubles as a breaker probe.
type GuardedCapture struct {
	primary audio.Capture
	standby audio.Capture
	breaker *Breaker

	mu       sync.Mutex
	active   audio.Capture
	degraded bool
}

// NewGuardedCapture wraps primary with a breaker and the given standby.
func NewGuardedCapture(primary, standby audio.Capture, cfg BreakerConfig) *GuardedCapture {
	if cfg.Name == "" {
		cfg.Name = "capture"
	}
	return &GuardedCapture{
		primary: primary,
		standby: standby,
		breaker: NewBreaker(cfg),
	}
}

var _ audio.Capture = (*GuardedCapture)(nil)

// Start opens the primary backend through the breaker, falling back to the
// standby on failure. The returned error is non-nil only when both backends
// fail.
func (g *GuardedCapture) Start(ctx context.Context, cfg audio.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.breaker.Execute(func() error {
		return g.primary.Start(ctx, cfg)
	})
	if err == nil {
		g.active = g.primary
		g.degraded = false
		return nil
	}

	if errors.Is(err, ErrBreakerOpen) {
		slog.Info("capture breaker open, starting standby backend")
	} else {
		slog.Warn("capture device failed, starting standby backend", "err", err)
	}
	if err := g.standby.Start(ctx, cfg); err != nil {
		return err
	}
	g.active = g.standby
	g.degraded = true
	return nil
}

// Pull returns the next frame from the active backend.
func (g *GuardedCapture) Pull() (audio.Frame, error) {
	g.mu.Lock()
	active := g.active
	g.mu.Unlock()
	if active == nil {
		return audio.Frame{}, audio.ErrNoFrame
	}
	return active.Pull()
}

// Stop ends capture on the active backend and returns the recording.
func (g *GuardedCapture) Stop() (audio.Waveform, error) {
	g.mu.Lock()
	active := g.active
	g.active = nil
	g.mu.Unlock()
	if active == nil {
		return audio.Waveform{}, audio.ErrNoFrame
	}
	return active.Stop()
}

// Degraded reports whether the most recent Start fell back to the standby.
func (g *GuardedCapture) Degraded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.degraded
}

// BreakerState exposes the breaker state for health reporting.
func (g *GuardedCapture) BreakerState() State {
	return g.breaker.State()
}
