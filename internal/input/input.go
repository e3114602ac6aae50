// Package input abstracts the installation's single physical button. Backends
// deliver press events on a channel; the session controller is the only
// consumer.
package input

import (
	"context"
	"errors"
	"time"
)

// ErrSourceUnavailable reports that the input device could not be opened or
// stopped responding. The controller keeps running on timeouts alone.
var ErrSourceUnavailable = errors.New("input: source unavailable")

// Kind distinguishes the two recognised gestures.
type Kind string

const (
	// ShortPress advances the session or cycles the style selection.
	ShortPress Kind = "short_press"

	// LongPress skips the remainder of the current phase.
	LongPress Kind = "long_press"
)

// DefaultLongPress is the hold duration that turns a press into a long press.
const DefaultLongPress = 1500 * time.Millisecond

// Event is one debounced button gesture.
type Event struct {
	Kind Kind
	At   time.Time
}

// Source emits button events. Start launches the backend's read loop; the
// channel from Events is closed when the loop exits. Implementations never
// block on a slow consumer: events that cannot be delivered are dropped.
type Source interface {
	Start(ctx context.Context) error
	Events() <-chan Event
	Close() error
}

// eventQueueDepth bounds buffered events between controller ticks. Presses
// beyond the buffer are dropped rather than replayed stale.
const eventQueueDepth = 8
