// Command waterbook runs the installation core: it wires audio capture, the
// visitor button, the feature pipeline, and the artifact output into one
// unattended process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waterbook/waterbook/internal/app"
	"github.com/waterbook/waterbook/internal/config"
	"github.com/waterbook/waterbook/internal/health"
	"github.com/waterbook/waterbook/internal/input"
	"github.com/waterbook/waterbook/internal/observe"
	"github.com/waterbook/waterbook/internal/session"
	"github.com/waterbook/waterbook/internal/style"
	"github.com/waterbook/waterbook/pkg/audio"
	"github.com/waterbook/waterbook/pkg/audio/device"
	"github.com/waterbook/waterbook/pkg/audio/synthetic"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional; defaults apply)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "waterbook: config file %q not found\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "waterbook: %v\n", err)
			}
			return 1
		}
		cfg = loaded
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("waterbook starting",
		"version", version,
		"config", *configPath,
		"capture", cfg.Audio.Backend,
		"input", cfg.Input.Backend,
		"output", cfg.Output.Dir,
	)

	// The style tables are static data; a broken table is a programming error
	// that should stop the process before the first visitor.
	if err := style.ValidateTables(); err != nil {
		slog.Error("style tables invalid", "err", err)
		return 1
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, mux, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		ListenAddr:     cfg.Observe.ListenAddr,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	application, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if mux != nil {
		registerHealth(mux, cfg, application)
	}

	slog.Info("installation ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Health probes ───────────────────────────────────────────────────────────

// registerHealth adds /healthz and /readyz to the telemetry mux. The cycle
// check treats attract as always fresh: an installation waiting for a visitor
// is idle, not wedged.
func registerHealth(mux *http.ServeMux, cfg *config.Config, application *app.App) {
	maxAge := 2 * longestPhase(cfg.Session)
	h := health.New(
		health.OutputDir(cfg.Output.Dir),
		health.CycleLive(func() (string, time.Time) {
			cur := application.Controller().Current()
			if cur.State == session.StateAttract {
				return string(cur.State), time.Now()
			}
			return string(cur.State), cur.EnteredAt
		}, maxAge),
	)
	h.Register(mux)
}

func longestPhase(s config.SessionConfig) time.Duration {
	longest := time.Duration(0)
	for _, d := range []config.Duration{
		s.ListenGuide, s.RecordMax, s.GenerateDeadline,
		s.SelectTimeout, s.DisplayTimeout, s.ResetDuration,
	} {
		if d.Std() > longest {
			longest = d.Std()
		}
	}
	return longest
}

// ── Backend wiring ──────────────────────────────────────────────────────────

// registerBuiltinBackends wires the shipped capture and input backends into
// reg. The registry keeps internal/app free of driver imports: only this file
// links PortAudio and the GPIO host drivers.
func registerBuiltinBackends(reg *config.Registry) {
	onDrop := frameDropCounter()
	reg.RegisterCapture(config.CaptureDevice, func(cfg config.AudioConfig) (audio.Capture, error) {
		return &device.Capture{OnDrop: onDrop}, nil
	})
	reg.RegisterCapture(config.CaptureSynthetic, func(cfg config.AudioConfig) (audio.Capture, error) {
		return &synthetic.Capture{OnDrop: onDrop}, nil
	})

	reg.RegisterInput(config.InputKeyboard, func(cfg config.InputConfig) (input.Source, error) {
		return input.NewKeyboard(), nil
	})
	reg.RegisterInput(config.InputGPIO, func(cfg config.InputConfig) (input.Source, error) {
		return input.NewGPIO(cfg.GPIOPin, input.WithLongPress(cfg.LongPress.Std())), nil
	})

	for _, name := range []config.CaptureBackend{config.CaptureDevice, config.CaptureSynthetic} {
		slog.Debug("registered capture backend", "name", name)
	}
	for _, name := range []config.InputBackend{config.InputKeyboard, config.InputGPIO} {
		slog.Debug("registered input backend", "name", name)
	}
}

// frameDropCounter feeds backend frame drops into the capture metrics.
func frameDropCounter() func(int) {
	m := observe.DefaultMetrics()
	return func(frames int) {
		m.FramesDropped.Add(context.Background(), int64(frames))
	}
}
