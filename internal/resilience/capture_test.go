package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/waterbook/waterbook/pkg/audio"
	"github.com/waterbook/waterbook/pkg/audio/mock"
)

func TestGuardedCapture_PrimaryHealthy(t *testing.T) {
	t.Parallel()

	primary := &mock.Capture{
		StopResult: audio.Waveform{Samples: []float64{0.5}, SampleRate: 32000},
	}
	standby := &mock.Capture{}
	g := NewGuardedCapture(primary, standby, BreakerConfig{})

	if err := g.Start(context.Background(), audio.Config{SampleRate: 32000}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if g.Degraded() {
		t.Error("Degraded() = true with healthy primary")
	}
	if _, err := g.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if primary.CallCountStart != 1 || standby.CallCountStart != 0 {
		t.Errorf("start calls primary=%d standby=%d, want 1/0",
			primary.CallCountStart, standby.CallCountStart)
	}
}

func TestGuardedCapture_FallsBackToStandby(t *testing.T) {
	t.Parallel()

	primary := &mock.Capture{StartError: audio.ErrDeviceUnavailable}
	standby := &mock.Capture{}
	g := NewGuardedCapture(primary, standby, BreakerConfig{})

	if err := g.Start(context.Background(), audio.Config{SampleRate: 32000}); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !g.Degraded() {
		t.Error("Degraded() = false after falling back")
	}
	if standby.CallCountStart != 1 {
		t.Errorf("standby start calls = %d, want 1", standby.CallCountStart)
	}
}

func TestGuardedCapture_BreakerSkipsDeadDevice(t *testing.T) {
	t.Parallel()

	primary := &mock.Capture{StartError: audio.ErrDeviceUnavailable}
	standby := &mock.Capture{}
	g := NewGuardedCapture(primary, standby, BreakerConfig{
		TripAfter:  2,
		RetryAfter: time.Hour,
	})

	for i := 0; i < 3; i++ {
		if err := g.Start(context.Background(), audio.Config{}); err != nil {
			t.Fatalf("Start() %d error: %v", i, err)
		}
		_, _ = g.Stop()
	}

	// After two failures the breaker is open; the third start must not
	// touch the device.
	if primary.CallCountStart != 2 {
		t.Errorf("primary start calls = %d, want 2 (breaker open)", primary.CallCountStart)
	}
	if g.BreakerState() != StateOpen {
		t.Errorf("breaker state = %v, want open", g.BreakerState())
	}
}

func TestGuardedCapture_BothFail(t *testing.T) {
	t.Parallel()

	primary := &mock.Capture{StartError: audio.ErrDeviceUnavailable}
	standby := &mock.Capture{StartError: errors.New("no standby either")}
	g := NewGuardedCapture(primary, standby, BreakerConfig{})

	if err := g.Start(context.Background(), audio.Config{}); err == nil {
		t.Fatal("Start() succeeded, want error when both backends fail")
	}
}

func TestGuardedCapture_PullBeforeStart(t *testing.T) {
	t.Parallel()

	g := NewGuardedCapture(&mock.Capture{}, &mock.Capture{}, BreakerConfig{})
	if _, err := g.Pull(); !errors.Is(err, audio.ErrNoFrame) {
		t.Errorf("Pull() err = %v, want ErrNoFrame", err)
	}
}
