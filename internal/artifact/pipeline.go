package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/waterbook/waterbook/pkg/audio"
)

// ErrArtifactFailure reports that the external rendering sink failed. The
// session still publishes its waveform and metadata; only the rendered piece
// is missing.
var ErrArtifactFailure = errors.New("artifact: render failure")

// Sink is the external artifact renderer. Render may take many seconds; the
// pipeline calls it from its worker goroutine, never from the control loop.
type Sink interface {
	Render(ctx context.Context, rec Record, wavPath, metaPath string) error
}

// SinkFunc adapts a function to the [Sink] interface.
type SinkFunc func(ctx context.Context, rec Record, wavPath, metaPath string) error

// Render implements [Sink].
func (f SinkFunc) Render(ctx context.Context, rec Record, wavPath, metaPath string) error {
	return f(ctx, rec, wavPath, metaPath)
}

// Published is one completed artifact. The pipeline retains at most the
// current and immediately-previous session's files.
type Published struct {
	Record      Record
	WavPath     string
	MetaPath    string
	CompletedAt time.Time
}

// job pairs a record with its waveform for the worker.
type job struct {
	rec Record
	wav audio.Waveform
}

// Pipeline runs artifact generation with exactly one job in flight. A new
// session's request while a job runs is queued (depth one, newest wins);
// generation is never run concurrently, bounding CPU and memory.
type Pipeline struct {
	dir  string
	sink Sink

	mu      sync.Mutex
	pending *job
	busy    bool
	wake    chan struct{}

	last atomic.Pointer[Published]
	prev atomic.Pointer[Published]
}

// NewPipeline creates a pipeline writing into dir. sink may be nil when no
// external renderer is attached (files are still published).
func NewPipeline(dir string, sink Sink) *Pipeline {
	return &Pipeline{
		dir:  dir,
		sink: sink,
		wake: make(chan struct{}, 1),
	}
}

// Submit queues one session's results. Non-blocking: if a job is already
// queued behind the running one it is replaced, keeping at most one
// outstanding request.
func (p *Pipeline) Submit(rec Record, wav audio.Waveform) {
	p.mu.Lock()
	if p.pending != nil {
		slog.Warn("artifact queue full, replacing pending job",
			"dropped_session", p.pending.rec.SessionID, "queued_session", rec.SessionID)
	}
	p.pending = &job{rec: rec, wav: wav}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Busy reports whether a job is currently being processed.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy || p.pending != nil
}

// Last returns the most recently completed artifact, or nil before the first
// session finishes. Lock-free for readers.
func (p *Pipeline) Last() *Published {
	return p.last.Load()
}

// Run processes jobs until ctx is done. Run it in its own goroutine; it never
// blocks the session control loop.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create output dir: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}

		for {
			p.mu.Lock()
			j := p.pending
			p.pending = nil
			if j != nil {
				p.busy = true
			}
			p.mu.Unlock()
			if j == nil {
				break
			}

			p.process(ctx, j)

			p.mu.Lock()
			p.busy = false
			p.mu.Unlock()
		}
	}
}

// process publishes one job's files and invokes the external sink. All
// failures are logged and absorbed; the control loop never sees them.
func (p *Pipeline) process(ctx context.Context, j *job) {
	start := time.Now()

	wavPath, err := p.publish(j.rec.SessionID+".wav", audio.EncodeWAV(j.wav))
	if err != nil {
		slog.Error("artifact waveform publish failed", "session", j.rec.SessionID, "err", err)
		return
	}

	meta, err := EncodeRecord(j.rec)
	if err != nil {
		slog.Error("artifact metadata encode failed", "session", j.rec.SessionID, "err", err)
		return
	}
	metaPath, err := p.publish(j.rec.SessionID+".json", meta)
	if err != nil {
		slog.Error("artifact metadata publish failed", "session", j.rec.SessionID, "err", err)
		return
	}

	if p.sink != nil {
		if err := p.sink.Render(ctx, j.rec, wavPath, metaPath); err != nil {
			slog.Warn("artifact render failed, publishing without rendered piece",
				"session", j.rec.SessionID, "err", fmt.Errorf("%w: %v", ErrArtifactFailure, err))
		}
	}

	pub := &Published{
		Record:      j.rec,
		WavPath:     wavPath,
		MetaPath:    metaPath,
		CompletedAt: time.Now(),
	}
	old := p.prev.Swap(p.last.Swap(pub))
	p.discard(old)

	slog.Info("artifact published",
		"session", j.rec.SessionID,
		"wav", wavPath,
		"elapsed", time.Since(start).Round(time.Millisecond))
}

// publish writes data to a temp file in the output dir and renames it into
// place, so no partial file is ever visible under its final name.
func (p *Pipeline) publish(name string, data []byte) (string, error) {
	final := filepath.Join(p.dir, name)
	tmp, err := os.CreateTemp(p.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return final, nil
}

// discard removes the files of an artifact that has aged out of the
// two-session retention window.
func (p *Pipeline) discard(old *Published) {
	if old == nil {
		return
	}
	for _, path := range []string{old.WavPath, old.MetaPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("artifact cleanup failed", "path", path, "err", err)
		}
	}
}
