package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/waterbook/waterbook/internal/artifact"
	"github.com/waterbook/waterbook/internal/feature"
	"github.com/waterbook/waterbook/internal/input"
	"github.com/waterbook/waterbook/internal/observe"
	"github.com/waterbook/waterbook/internal/style"
	"github.com/waterbook/waterbook/pkg/audio"
)

// Publisher receives finished sessions. Submit must never block.
type Publisher interface {
	Submit(rec artifact.Record, wav audio.Waveform)
}

// maxFramesPerTick bounds the audio work done per control-loop iteration.
const maxFramesPerTick = 64

// Config holds the controller's phase timings. Zero values take the defaults
// used on the gallery floor.
type Config struct {
	// Audio is handed to the capture backend on each session start.
	Audio audio.Config

	Tick             time.Duration
	ListenGuide      time.Duration
	RecordMin        time.Duration
	RecordMax        time.Duration
	GenerateDeadline time.Duration
	SelectTimeout    time.Duration
	SelectMinDwell   time.Duration
	DisplayTimeout   time.Duration
	ResetDuration    time.Duration
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d == 0 {
			*d = v
		}
	}
	def(&c.Tick, 100*time.Millisecond)
	def(&c.ListenGuide, 10*time.Second)
	def(&c.RecordMin, 5*time.Second)
	def(&c.RecordMax, 35*time.Second)
	def(&c.GenerateDeadline, 90*time.Second)
	def(&c.SelectTimeout, 30*time.Second)
	def(&c.SelectMinDwell, 2*time.Second)
	def(&c.DisplayTimeout, 120*time.Second)
	def(&c.ResetDuration, 5*time.Second)
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 32000
	}
	return c
}

// genOutcome carries the generation goroutine's result back to the loop.
type genOutcome struct {
	res Result
	err error
}

// Controller runs the visitor cycle. A fixed-tick loop owns all state; audio
// frames, button events, and generation results are consumed without ever
// blocking, so a wedged subsystem can stall at most its own phase, never the
// machine.
type Controller struct {
	cfg       Config
	capture   audio.Capture
	source    input.Source
	extractor *feature.Extractor
	gen       Generator
	pub       Publisher
	metrics   *observe.Metrics

	mu   sync.Mutex
	sess Session

	// Generation bookkeeping, touched only by the control loop.
	genDone   chan genOutcome
	genCancel context.CancelFunc
}

// Option adjusts a [Controller].
type Option func(*Controller)

// WithMetrics replaces the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithPublisher attaches the artifact publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.pub = p }
}

// NewController wires the visitor cycle. capture, source, and gen are
// required; the publisher is optional.
func NewController(cfg Config, capture audio.Capture, source input.Source, gen Generator, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:     cfg,
		capture: capture,
		source:  source,
		extractor: feature.NewExtractor(feature.Config{
			SampleRate: cfg.Audio.SampleRate,
		}),
		gen:  gen,
		sess: newSession(time.Now()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Current returns a copy of the live session record.
func (c *Controller) Current() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	s.Reasons = slices.Clone(s.Reasons)
	s.Candidates = slices.Clone(s.Candidates)
	return s
}

// Run drives the cycle until ctx is done. A failed input source is not
// fatal: the cycle still advances on timeouts.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.source.Start(ctx); err != nil {
		slog.Warn("input source unavailable, advancing on timeouts only", "err", err)
	}
	defer c.source.Close()

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	events := c.source.Events()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				slog.Warn("input event stream closed, advancing on timeouts only")
				continue
			}
			c.mu.Lock()
			c.handleEvent(ctx, ev)
			c.mu.Unlock()

		case out := <-c.genDone:
			c.mu.Lock()
			c.finishGenerate(ctx, out)
			c.mu.Unlock()

		case now := <-ticker.C:
			c.mu.Lock()
			c.tick(ctx, now)
			c.mu.Unlock()
		}
	}
}

// ─── tick handling ───

func (c *Controller) tick(ctx context.Context, now time.Time) {
	elapsed := now.Sub(c.sess.EnteredAt)

	switch c.sess.State {
	case StateListen:
		c.drainFrames(ctx, false)
		if elapsed >= c.cfg.ListenGuide {
			c.beginRecording(ctx)
		}

	case StateRecord:
		c.drainFrames(ctx, true)
		if elapsed >= c.cfg.RecordMax {
			c.stopRecording(ctx, now)
		}

	case StateGenerate:
		if elapsed >= c.cfg.GenerateDeadline {
			c.abandonGenerate(ctx, elapsed)
		}

	case StateSelect:
		if elapsed >= c.cfg.SelectTimeout {
			c.confirmSelection(ctx, now)
		}

	case StateDisplay:
		if elapsed >= c.cfg.DisplayTimeout {
			c.transition(ctx, StateReset)
		}

	case StateReset:
		if elapsed >= c.cfg.ResetDuration {
			c.completeSession(ctx, now)
		}
	}
}

// ─── button handling ───

func (c *Controller) handleEvent(ctx context.Context, ev input.Event) {
	now := ev.At
	if now.IsZero() {
		now = time.Now()
	}
	elapsed := now.Sub(c.sess.EnteredAt)

	switch c.sess.State {
	case StateAttract:
		// Any gesture wakes the installation.
		c.beginSession(ctx, now)

	case StateListen:
		// Long press skips the rest of the guide; short presses are absorbed
		// so a visitor mashing the button does not truncate the guide.
		if ev.Kind == input.LongPress {
			c.beginRecording(ctx)
		}

	case StateRecord:
		if elapsed < c.cfg.RecordMin {
			slog.Debug("recording below minimum length, press ignored",
				"session", c.sess.ID, "elapsed", elapsed)
			return
		}
		c.stopRecording(ctx, now)

	case StateGenerate:
		// Generation cannot be skipped.

	case StateSelect:
		// The dwell absorbs presses landing right as selection opens, so the
		// press that ended recording cannot double-fire into a cycle.
		if elapsed < c.cfg.SelectMinDwell {
			slog.Debug("selection dwell not reached, press ignored",
				"session", c.sess.ID, "elapsed", elapsed)
			return
		}
		switch ev.Kind {
		case input.ShortPress:
			c.cycleStyle(ctx)
		case input.LongPress:
			c.confirmSelection(ctx, now)
		}

	case StateDisplay:
		c.transition(ctx, StateReset)
	}
}

// ─── phase actions ───

// beginSession starts a fresh session and opens the microphone.
func (c *Controller) beginSession(ctx context.Context, now time.Time) {
	c.sess = newSession(now)
	c.metrics.SessionsStarted.Add(ctx, 1)
	slog.Info("session started", "session", c.sess.ID)

	// A dead microphone never changes the cadence: the session still walks
	// listen and record at their usual durations, the idle capture simply
	// yields no frames and the summary falls back to the default.
	if err := c.capture.Start(ctx, c.cfg.Audio); err != nil {
		slog.Error("capture unavailable, session proceeds degraded",
			"session", c.sess.ID, "err", err)
		c.metrics.CaptureErrors.Add(ctx, 1)
		c.metrics.RecordDegraded(ctx, ReasonCaptureUnavailable)
		c.sess.markDegraded(ReasonCaptureUnavailable)
	}
	c.transition(ctx, StateListen)
}

// beginRecording moves from listening to recording, resetting the extractor.
func (c *Controller) beginRecording(ctx context.Context) {
	c.extractor.Reset()
	c.transition(ctx, StateRecord)
}

// stopRecording closes the microphone, finalises the feature summary, and
// starts generation.
func (c *Controller) stopRecording(ctx context.Context, now time.Time) {
	c.drainFrames(ctx, true)

	wav, err := c.capture.Stop()
	if err != nil {
		slog.Error("capture stop failed", "session", c.sess.ID, "err", err)
		c.metrics.CaptureErrors.Add(ctx, 1)
		c.sess.markDegraded(ReasonCaptureUnavailable)
	}
	c.sess.Recording = wav
	c.sess.RecordedAt = now
	if len(wav.Samples) == 0 {
		c.sess.markDegraded(ReasonEmptyRecording)
		c.metrics.RecordDegraded(ctx, ReasonEmptyRecording)
	}
	c.sess.Summary = c.extractor.Finalize()

	slog.Info("recording stopped",
		"session", c.sess.ID,
		"duration", wav.Duration().Round(time.Millisecond),
		"label", c.sess.Summary.Label,
		"confidence", c.sess.Summary.Confidence)

	c.transition(ctx, StateGenerate)
	c.startGenerate(ctx)
}

// startGenerate launches the generator off the control loop.
func (c *Controller) startGenerate(ctx context.Context) {
	done := make(chan genOutcome, 1)
	genCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerateDeadline)
	c.genDone = done
	c.genCancel = cancel

	sum := c.sess.Summary
	gen := c.gen
	go func() {
		res, err := gen.Generate(genCtx, sum)
		done <- genOutcome{res: res, err: err}
	}()
}

// finishGenerate applies the generator's outcome and enters selection.
func (c *Controller) finishGenerate(ctx context.Context, out genOutcome) {
	if c.genDone == nil {
		// Deadline already abandoned this generation; drop the late result.
		return
	}
	c.clearGenerate()
	c.metrics.GenerationLatency.Record(ctx, time.Since(c.sess.EnteredAt).Seconds())

	if out.err != nil {
		reason := ReasonGenerationError
		if errors.Is(out.err, context.DeadlineExceeded) {
			reason = ReasonGenerationTimeout
			c.metrics.GenerationTimeouts.Add(ctx, 1)
		}
		slog.Error("generation failed, using fallback output",
			"session", c.sess.ID, "reason", reason, "err", out.err)
		c.metrics.RecordDegraded(ctx, reason)
		c.sess.markDegraded(reason)
		out.res = fallbackResult(c.sess.Summary)
	}

	c.applyResult(out.res)
	c.transition(ctx, StateSelect)
}

// abandonGenerate fires when the deadline passes without an outcome.
func (c *Controller) abandonGenerate(ctx context.Context, elapsed time.Duration) {
	slog.Error("generation deadline exceeded, using fallback output",
		"session", c.sess.ID, "elapsed", elapsed.Round(time.Millisecond))
	c.clearGenerate()
	c.metrics.GenerationTimeouts.Add(ctx, 1)
	c.metrics.GenerationLatency.Record(ctx, elapsed.Seconds())
	c.metrics.RecordDegraded(ctx, ReasonGenerationTimeout)
	c.sess.markDegraded(ReasonGenerationTimeout)

	c.applyResult(fallbackResult(c.sess.Summary))
	c.transition(ctx, StateSelect)
}

func (c *Controller) applyResult(res Result) {
	c.sess.Candidates = res.Candidates
	c.sess.Style = res.Style
	c.sess.Parameters = res.Parameters
}

// cycleStyle advances to the next style and recomputes the parameters.
func (c *Controller) cycleStyle(ctx context.Context) {
	next := c.sess.Style.Next()
	params, err := style.Map(c.sess.Summary, next)
	if err != nil {
		slog.Error("style mapping failed while cycling", "session", c.sess.ID, "err", err)
		c.metrics.RecordDegraded(ctx, ReasonGenerationError)
		c.sess.markDegraded(ReasonGenerationError)
	}
	c.sess.Style = params.Style
	c.sess.Parameters = params
	slog.Info("style cycled", "session", c.sess.ID, "style", c.sess.Style)
}

// confirmSelection locks in the style and hands the session to the artifact
// pipeline.
func (c *Controller) confirmSelection(ctx context.Context, now time.Time) {
	slog.Info("style confirmed", "session", c.sess.ID, "style", c.sess.Style)
	if c.pub != nil {
		c.pub.Submit(artifact.Record{
			SessionID:  c.sess.ID,
			StartedAt:  c.sess.StartedAt,
			RecordedAt: c.sess.RecordedAt,
			Degraded:   c.sess.Degraded,
			Reasons:    slices.Clone(c.sess.Reasons),
			Summary:    c.sess.Summary,
			Candidates: slices.Clone(c.sess.Candidates),
			Parameters: c.sess.Parameters,
		}, c.sess.Recording)
	}
	c.transition(ctx, StateDisplay)
}

// completeSession closes out the cycle and returns to attract mode.
func (c *Controller) completeSession(ctx context.Context, now time.Time) {
	c.metrics.RecordCompleted(ctx, c.sess.Degraded)
	slog.Info("session completed",
		"session", c.sess.ID,
		"degraded", c.sess.Degraded,
		"total", now.Sub(c.sess.StartedAt).Round(time.Second))
	c.transition(ctx, StateAttract)
	c.sess = newSession(now)
}

// ─── helpers ───

// drainFrames pulls buffered frames, optionally feeding the extractor. The
// per-tick bound keeps one iteration cheap even after a long stall.
func (c *Controller) drainFrames(ctx context.Context, ingest bool) {
	for i := 0; i < maxFramesPerTick; i++ {
		frame, err := c.capture.Pull()
		if err != nil {
			if !errors.Is(err, audio.ErrNoFrame) {
				slog.Debug("frame pull failed", "session", c.sess.ID, "err", err)
				c.metrics.CaptureErrors.Add(ctx, 1)
			}
			return
		}
		if ingest {
			c.extractor.Ingest(frame)
		}
	}
}

// releaseCapture stops the microphone and discards the buffered audio.
func (c *Controller) releaseCapture() {
	if _, err := c.capture.Stop(); err != nil && !errors.Is(err, audio.ErrNoFrame) {
		slog.Debug("capture release failed", "err", err)
	}
}

// clearGenerate cancels the generation context and forgets the outcome
// channel so a late result is dropped.
func (c *Controller) clearGenerate() {
	if c.genCancel != nil {
		c.genCancel()
		c.genCancel = nil
	}
	c.genDone = nil
}

// transition moves to a new state, recording the time spent in the old one.
func (c *Controller) transition(ctx context.Context, to State) {
	from := c.sess.State
	spent := time.Since(c.sess.EnteredAt)
	c.sess.State = to
	c.sess.EnteredAt = time.Now()
	c.metrics.RecordTransition(ctx, string(from), string(to), spent)
	slog.Debug("state transition", "session", c.sess.ID, "from", from, "to", to,
		"spent", spent.Round(time.Millisecond))
}

// shutdown releases resources when the loop exits.
func (c *Controller) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearGenerate()
	if c.sess.State == StateListen || c.sess.State == StateRecord {
		c.releaseCapture()
	}
}
