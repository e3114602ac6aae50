package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waterbook/waterbook/pkg/audio"
)

func testWaveform() audio.Waveform {
	samples := make([]float64, 320)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.Waveform{Samples: samples, SampleRate: 32000}
}

// waitPublished polls until the pipeline exposes an artifact for the given
// session id.
func waitPublished(t *testing.T, p *Pipeline, sessionID string) *Published {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pub := p.Last(); pub != nil && pub.Record.SessionID == sessionID {
			return pub
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("artifact for session %q not published in time", sessionID)
	return nil
}

func TestPipeline_PublishesWavAndMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPipeline(dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	rec := sampleRecord()
	p.Submit(rec, testWaveform())
	pub := waitPublished(t, p, rec.SessionID)

	if pub.WavPath != filepath.Join(dir, rec.SessionID+".wav") {
		t.Errorf("wav path = %q", pub.WavPath)
	}
	data, err := os.ReadFile(pub.MetaPath)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	got, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if got.SessionID != rec.SessionID {
		t.Errorf("metadata session id = %q, want %q", got.SessionID, rec.SessionID)
	}
	wav, err := os.ReadFile(pub.WavPath)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(wav) == 0 || string(wav[:4]) != "RIFF" {
		t.Errorf("wav file missing RIFF header")
	}
}

func TestPipeline_RetainsTwoSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := NewPipeline(dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	var paths []string
	for i := 0; i < 3; i++ {
		rec := sampleRecord()
		rec.SessionID = fmt.Sprintf("session-%d", i)
		p.Submit(rec, testWaveform())
		pub := waitPublished(t, p, rec.SessionID)
		paths = append(paths, pub.WavPath, pub.MetaPath)
	}

	// Oldest session's files are gone, the newer two remain.
	for _, path := range paths[:2] {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists, want removed", path)
		}
	}
	for _, path := range paths[2:] {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("stat %s: %v", path, err)
		}
	}
}

func TestPipeline_SinkFailureStillPublishes(t *testing.T) {
	t.Parallel()

	sink := SinkFunc(func(ctx context.Context, rec Record, wavPath, metaPath string) error {
		return errors.New("renderer offline")
	})
	p := NewPipeline(t.TempDir(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	rec := sampleRecord()
	p.Submit(rec, testWaveform())
	pub := waitPublished(t, p, rec.SessionID)

	if _, err := os.Stat(pub.WavPath); err != nil {
		t.Errorf("wav not published despite sink failure: %v", err)
	}
}

func TestPipeline_SubmitNeverBlocks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var renders atomic.Int32
	sink := SinkFunc(func(ctx context.Context, rec Record, wavPath, metaPath string) error {
		renders.Add(1)
		<-release
		return nil
	})
	p := NewPipeline(t.TempDir(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// First job occupies the worker; the rest land in the single pending
	// slot, newest replacing oldest, without blocking the caller.
	for i := 0; i < 5; i++ {
		rec := sampleRecord()
		rec.SessionID = fmt.Sprintf("burst-%d", i)
		p.Submit(rec, testWaveform())
	}
	if !p.Busy() {
		t.Error("Busy() = false while a job is in flight")
	}
	close(release)

	pub := waitPublished(t, p, "burst-4")
	if pub.Record.SessionID != "burst-4" {
		t.Errorf("last artifact = %q, want the newest queued session", pub.Record.SessionID)
	}
	if n := renders.Load(); n > 2 {
		t.Errorf("rendered %d jobs, want at most 2 (running + one queued)", n)
	}
}
