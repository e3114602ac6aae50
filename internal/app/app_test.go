package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/waterbook/waterbook/internal/config"
	"github.com/waterbook/waterbook/internal/input"
	inputmock "github.com/waterbook/waterbook/internal/input/mock"
	"github.com/waterbook/waterbook/internal/observe"
	"github.com/waterbook/waterbook/internal/session"
	"github.com/waterbook/waterbook/pkg/audio"
	audiomock "github.com/waterbook/waterbook/pkg/audio/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// testAppConfig compresses timings and points output at a temp dir.
func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Session.Tick = config.Duration(time.Millisecond)
	cfg.Session.ListenGuide = config.Duration(200 * time.Millisecond)
	cfg.Session.RecordMin = config.Duration(10 * time.Millisecond)
	cfg.Session.RecordMax = config.Duration(40 * time.Millisecond)
	cfg.Session.GenerateDeadline = config.Duration(100 * time.Millisecond)
	cfg.Session.SelectTimeout = config.Duration(50 * time.Millisecond)
	cfg.Session.SelectMinDwell = config.Duration(5 * time.Millisecond)
	cfg.Session.DisplayTimeout = config.Duration(50 * time.Millisecond)
	cfg.Session.ResetDuration = config.Duration(10 * time.Millisecond)
	return cfg
}

func TestNew_UnregisteredBackendFails(t *testing.T) {
	t.Parallel()

	cfg := testAppConfig(t)
	_, err := New(context.Background(), cfg, config.NewRegistry(),
		WithSource(&inputmock.Source{}), WithMetrics(testMetrics(t)))
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Fatalf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestApp_FullSessionPublishesArtifact(t *testing.T) {
	t.Parallel()

	cfg := testAppConfig(t)
	capture := &audiomock.Capture{
		PullFrames: []audio.Frame{{Samples: make([]float64, 256), SampleRate: 32000}},
		PullLoop:   true,
		StopResult: audio.Waveform{Samples: make([]float64, 3200), SampleRate: 32000},
	}
	source := &inputmock.Source{}

	a, err := New(context.Background(), cfg, config.NewRegistry(),
		WithCapture(capture), WithSource(source), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Run did not stop")
		}
		_ = a.Shutdown(context.Background())
	})

	// Drive one visitor through the cycle: wake, skip the guide, let the
	// maximum recording length and the selection timeout do the rest.
	source.Press(input.Event{Kind: input.ShortPress})
	waitState(t, a.Controller(), session.StateListen)
	source.Press(input.Event{Kind: input.LongPress})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pub := a.LastArtifact(); pub != nil {
			if _, err := os.Stat(pub.WavPath); err != nil {
				t.Fatalf("published wav missing: %v", err)
			}
			if filepath.Dir(pub.MetaPath) != cfg.Output.Dir {
				t.Errorf("metadata written to %q, want %q", filepath.Dir(pub.MetaPath), cfg.Output.Dir)
			}
			if pub.Record.SessionID == "" {
				t.Error("published record has no session id")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no artifact published in time")
}

func waitState(t *testing.T, c *session.Controller, want session.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Current().State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %q, want %q", c.Current().State, want)
}
