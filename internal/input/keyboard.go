package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Keyboard reads gestures from a line-oriented stream, one command per line.
// An empty line or "s" is a short press, "l" is a long press. It stands in
// for the hardware button during development and on machines without GPIO.
type Keyboard struct {
	reader io.Reader

	mu      sync.Mutex
	started bool
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
}

// KeyboardOption adjusts a [Keyboard] before Start.
type KeyboardOption func(*Keyboard)

// WithReader replaces the stream the keyboard reads from. Defaults to stdin.
func WithReader(r io.Reader) KeyboardOption {
	return func(k *Keyboard) { k.reader = r }
}

// NewKeyboard creates a keyboard source reading from stdin unless overridden.
func NewKeyboard(opts ...KeyboardOption) *Keyboard {
	k := &Keyboard{reader: os.Stdin}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Start launches the line reader.
func (k *Keyboard) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return fmt.Errorf("input: keyboard already started")
	}
	k.started = true
	k.events = make(chan Event, eventQueueDepth)
	k.done = make(chan struct{})

	ctx, k.cancel = context.WithCancel(ctx)
	go k.readLoop(ctx)
	return nil
}

// Events returns the gesture channel. Call after Start.
func (k *Keyboard) Events() <-chan Event {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.events
}

// Close stops the reader. The underlying stream is not closed; a blocked
// stdin read ends when the process does.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.started {
		return nil
	}
	k.cancel()
	return nil
}

func (k *Keyboard) readLoop(ctx context.Context) {
	defer close(k.done)
	defer close(k.events)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(k.reader)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			kind, ok := parseCommand(line)
			if !ok {
				continue
			}
			k.deliver(Event{Kind: kind, At: time.Now()})
		}
	}
}

func (k *Keyboard) deliver(ev Event) {
	select {
	case k.events <- ev:
	default:
		slog.Debug("input event dropped, queue full", "kind", ev.Kind)
	}
}

func parseCommand(line string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "s":
		return ShortPress, true
	case "l":
		return LongPress, true
	}
	return "", false
}
