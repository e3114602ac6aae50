// Package app wires all installation subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the visitor cycle, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithCapture, WithSource, etc.). When an option is not provided, New
// creates real implementations from the config and registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/waterbook/waterbook/internal/artifact"
	"github.com/waterbook/waterbook/internal/config"
	"github.com/waterbook/waterbook/internal/input"
	"github.com/waterbook/waterbook/internal/observe"
	"github.com/waterbook/waterbook/internal/onomatopoeia"
	"github.com/waterbook/waterbook/internal/resilience"
	"github.com/waterbook/waterbook/internal/session"
	"github.com/waterbook/waterbook/pkg/audio"
)

// App owns all subsystem lifetimes and drives the visitor cycle.
type App struct {
	cfg *config.Config

	capture    audio.Capture
	source     input.Source
	engine     *onomatopoeia.Engine
	pipeline   *artifact.Pipeline
	controller *session.Controller
	metrics    *observe.Metrics
	sink       artifact.Sink

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCapture injects a capture backend instead of creating one from config.
func WithCapture(c audio.Capture) Option {
	return func(a *App) { a.capture = c }
}

// WithSource injects an input source instead of creating one from config.
func WithSource(s input.Source) Option {
	return func(a *App) { a.source = s }
}

// WithSink attaches an external artifact renderer.
func WithSink(s artifact.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithMetrics replaces the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. Backend construction
// goes through the registry so the core never imports driver packages. Use
// Option functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initCapture(reg); err != nil {
		return nil, fmt.Errorf("app: init capture: %w", err)
	}
	if err := a.initInput(reg); err != nil {
		return nil, fmt.Errorf("app: init input: %w", err)
	}
	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init onomatopoeia engine: %w", err)
	}

	a.pipeline = artifact.NewPipeline(cfg.Output.Dir, a.sink)

	a.controller = session.NewController(
		sessionConfig(cfg),
		a.capture,
		a.source,
		session.NewGenerator(a.engine),
		session.WithPublisher(a.pipeline),
		session.WithMetrics(a.metrics),
	)

	return a, nil
}

// initCapture builds the capture backend. The physical device is always
// wrapped with a breaker and the synthetic standby so a dead microphone
// degrades the session instead of ending it.
func (a *App) initCapture(reg *config.Registry) error {
	if a.capture != nil {
		return nil
	}

	primary, err := reg.CreateCapture(a.cfg.Audio)
	if err != nil {
		return err
	}
	if a.cfg.Audio.Backend != config.CaptureDevice {
		a.capture = primary
		return nil
	}

	standbyCfg := a.cfg.Audio
	standbyCfg.Backend = config.CaptureSynthetic
	standby, err := reg.CreateCapture(standbyCfg)
	if err != nil {
		return fmt.Errorf("create standby backend: %w", err)
	}
	a.capture = resilience.NewGuardedCapture(primary, standby, resilience.BreakerConfig{
		Name: "microphone",
	})
	return nil
}

// initInput builds the button backend.
func (a *App) initInput(reg *config.Registry) error {
	if a.source != nil {
		return nil
	}
	source, err := reg.CreateInput(a.cfg.Input)
	if err != nil {
		return err
	}
	a.source = source
	a.closers = append(a.closers, source.Close)
	return nil
}

// initEngine builds the onomatopoeia engine, loading the configured lexicon
// when one is given.
func (a *App) initEngine() error {
	var lx onomatopoeia.Lexicon
	if path := a.cfg.Lexicon.Path; path != "" {
		loaded, err := onomatopoeia.LoadLexicon(path)
		if err != nil {
			return err
		}
		lx = loaded
		slog.Info("lexicon loaded", "path", path, "entries", len(loaded))
	}
	engine, err := onomatopoeia.NewEngine(lx, onomatopoeia.EngineConfig{})
	if err != nil {
		return err
	}
	a.engine = engine
	return nil
}

// Run starts the artifact pipeline, the lexicon watcher, and the session
// controller, blocking until ctx is done or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(a.pipeline.Run(ctx))
	})
	if path := a.cfg.Lexicon.Path; path != "" {
		g.Go(func() error {
			return ignoreCancel(a.engine.Watch(ctx, path))
		})
	}
	g.Go(func() error {
		return ignoreCancel(a.controller.Run(ctx))
	})

	slog.Info("installation running",
		"capture", a.cfg.Audio.Backend,
		"input", a.cfg.Input.Backend,
		"output", a.cfg.Output.Dir)
	return g.Wait()
}

// Controller exposes the session controller for health reporting.
func (a *App) Controller() *session.Controller {
	return a.controller
}

// LastArtifact returns the most recently published artifact, or nil.
func (a *App) LastArtifact() *artifact.Published {
	return a.pipeline.Last()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// sessionConfig converts the YAML timings into the controller's config.
func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Audio: audio.Config{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			FrameLength: cfg.Audio.FrameLength,
		},
		Tick:             cfg.Session.Tick.Std(),
		ListenGuide:      cfg.Session.ListenGuide.Std(),
		RecordMin:        cfg.Session.RecordMin.Std(),
		RecordMax:        cfg.Session.RecordMax.Std(),
		GenerateDeadline: cfg.Session.GenerateDeadline.Std(),
		SelectTimeout:    cfg.Session.SelectTimeout.Std(),
		SelectMinDwell:   cfg.Session.SelectMinDwell.Std(),
		DisplayTimeout:   cfg.Session.DisplayTimeout.Std(),
		ResetDuration:    cfg.Session.ResetDuration.Std(),
	}
}

// ignoreCancel filters the errors expected on a clean shutdown.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
