package synthetic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waterbook/waterbook/pkg/audio"
)

func testConfig() audio.Config {
	// Small frames at a high rate so tests finish quickly.
	return audio.Config{SampleRate: 32000, Channels: 1, FrameLength: 64}
}

func pullOne(t *testing.T, c *Capture) audio.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, err := c.Pull()
		if err == nil {
			return f
		}
		if !errors.Is(err, audio.ErrNoFrame) {
			t.Fatalf("Pull() error: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no frame generated in time")
	return audio.Frame{}
}

func TestCapture_GeneratesFrames(t *testing.T) {
	t.Parallel()

	c := &Capture{}
	if err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop()

	f := pullOne(t, c)
	if len(f.Samples) != 64 {
		t.Errorf("frame length = %d, want 64", len(f.Samples))
	}
	if f.SampleRate != 32000 {
		t.Errorf("sample rate = %d, want 32000", f.SampleRate)
	}
	for i, s := range f.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample[%d] = %v outside [-1, 1]", i, s)
		}
	}
}

func TestCapture_PullBeforeStart(t *testing.T) {
	t.Parallel()

	c := &Capture{}
	if _, err := c.Pull(); !errors.Is(err, audio.ErrNoFrame) {
		t.Errorf("Pull() error = %v, want ErrNoFrame", err)
	}
}

func TestCapture_StopReturnsRecording(t *testing.T) {
	t.Parallel()

	c := &Capture{}
	if err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	pullOne(t, c)

	w, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if len(w.Samples) == 0 {
		t.Error("Stop() returned empty recording")
	}
	if w.SampleRate != 32000 {
		t.Errorf("sample rate = %d, want 32000", w.SampleRate)
	}
}

func TestCapture_SeedIsReproducible(t *testing.T) {
	t.Parallel()

	gen := func(seed uint64) []float64 {
		c := &Capture{Seed: seed}
		if err := c.Start(context.Background(), testConfig()); err != nil {
			t.Fatalf("Start() error: %v", err)
		}
		f := pullOne(t, c)
		c.Stop()
		return f.Samples
	}

	a := gen(42)
	b := gen(42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample[%d] differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestCapture_ReportsDroppedFrames(t *testing.T) {
	t.Parallel()

	var dropped atomic.Int64
	c := &Capture{OnDrop: func(n int) { dropped.Add(int64(n)) }}
	if err := c.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Stop()

	// Nobody pulls: the 16-slot queue fills within 32 frames (2ms each) and
	// the generator starts discarding.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dropped.Load() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no drops reported with an idle consumer")
}

func TestCapture_StartTwiceIsNoop(t *testing.T) {
	t.Parallel()

	c := &Capture{}
	ctx := context.Background()
	if err := c.Start(ctx, testConfig()); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	if err := c.Start(ctx, testConfig()); err != nil {
		t.Errorf("second Start() error: %v", err)
	}
	c.Stop()
}
