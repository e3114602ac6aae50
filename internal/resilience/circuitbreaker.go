// Package resilience keeps the installation running across hardware faults.
//
// The central type is [Breaker], a three-state circuit breaker
// (closed → open → half-open) that stops the session loop from hammering a
// dead microphone. [GuardedCapture] wraps the physical capture backend with a
// breaker and a standby backend so a session can always start.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Execute] when the breaker is open
// and the retry window has not yet elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed is the normal operating state; all calls are forwarded.
	StateClosed State = iota

	// StateOpen means the breaker has tripped. Calls are rejected with
	// [ErrBreakerOpen] until the retry window elapses.
	StateOpen

	// StateHalfOpen is the probe state after the retry window. A limited
	// number of calls go through; success closes the breaker, failure
	// re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker]. The defaults suit the
// microphone: a USB device that disappears usually needs a few seconds to
// re-enumerate, and each session start is a natural probe point.
type BreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// TripAfter is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 3.
	TripAfter int

	// RetryAfter is how long the breaker stays open before allowing
	// probes. Default: 10s.
	RetryAfter time.Duration

	// ProbeBudget is the number of successful probe calls in the half-open
	// state needed to close again. Default: 2.
	ProbeBudget int
}

// Breaker implements the three-state circuit breaker pattern. It is safe for
// concurrent use from multiple goroutines.
type Breaker struct {
	name        string
	tripAfter   int
	retryAfter  time.Duration
	probeBudget int

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker creates a [Breaker] with the supplied configuration. Zero-value
// config fields are replaced with the defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 3
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 10 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 2
	}
	return &Breaker{
		name:        cfg.Name,
		tripAfter:   cfg.TripAfter,
		retryAfter:  cfg.RetryAfter,
		probeBudget: cfg.ProbeBudget,
		state:       StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrBreakerOpen] without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.retryAfter {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probes = 0
		slog.Info("breaker half-open, probing", "name", b.name)
	}
	probing := b.state == StateHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	if probing {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.failures = b.tripAfter
		slog.Warn("breaker re-opened after failed probe", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.tripAfter {
		b.state = StateOpen
		b.openedAt = time.Now()
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		b.probes++
		if b.probes >= b.probeBudget {
			b.state = StateClosed
			b.failures = 0
			b.probes = 0
			slog.Info("breaker closed after successful probes", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the current [State]. If the breaker is open and the retry
// window has elapsed, the returned state is [StateHalfOpen] (the actual
// transition happens on the next [Execute] call).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.retryAfter {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probes = 0
	slog.Info("breaker manually reset", "name", b.name)
}
