package input

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// debounce is the settle time ignored after each edge. Dome buttons bounce
// for a few milliseconds on both make and break.
const debounce = 30 * time.Millisecond

// edgeTimeout bounds WaitForEdge so the loop can notice cancellation.
const edgeTimeout = 250 * time.Millisecond

// GPIO reads the installation button wired active-low to a header pin with
// the internal pull-up enabled. Hold duration decides short versus long
// press.
type GPIO struct {
	pinName   string
	longPress time.Duration

	mu      sync.Mutex
	started bool
	pin     gpio.PinIn
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
}

// GPIOOption adjusts a [GPIO] before Start.
type GPIOOption func(*GPIO)

// WithLongPress overrides the long-press hold threshold.
func WithLongPress(d time.Duration) GPIOOption {
	return func(g *GPIO) { g.longPress = d }
}

// NewGPIO creates a button source on the named pin, e.g. "GPIO17".
func NewGPIO(pinName string, opts ...GPIOOption) *GPIO {
	g := &GPIO{pinName: pinName, longPress: DefaultLongPress}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start initialises the host drivers and configures the pin for both-edge
// interrupts. A missing pin or failed host init returns
// [ErrSourceUnavailable].
func (g *GPIO) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return fmt.Errorf("input: gpio already started")
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("%w: host init: %v", ErrSourceUnavailable, err)
	}
	pin := gpioreg.ByName(g.pinName)
	if pin == nil {
		return fmt.Errorf("%w: no pin %q", ErrSourceUnavailable, g.pinName)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("%w: configure %q: %v", ErrSourceUnavailable, g.pinName, err)
	}

	g.started = true
	g.pin = pin
	g.events = make(chan Event, eventQueueDepth)
	g.done = make(chan struct{})

	ctx, g.cancel = context.WithCancel(ctx)
	go g.readLoop(ctx)
	return nil
}

// Events returns the gesture channel. Call after Start.
func (g *GPIO) Events() <-chan Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.events
}

// Close stops the edge loop and halts the pin.
func (g *GPIO) Close() error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	cancel, done, pin := g.cancel, g.done, g.pin
	g.mu.Unlock()

	cancel()
	<-done
	return pin.Halt()
}

// readLoop converts edges into press events. The pin is active low: a
// falling edge starts a press, the following rising edge ends it and the
// hold time picks the gesture.
func (g *GPIO) readLoop(ctx context.Context) {
	defer close(g.done)
	defer close(g.events)

	var pressedAt time.Time
	for {
		if ctx.Err() != nil {
			return
		}
		if !g.pin.WaitForEdge(edgeTimeout) {
			continue
		}
		time.Sleep(debounce)

		now := time.Now()
		if g.pin.Read() == gpio.Low {
			if pressedAt.IsZero() {
				pressedAt = now
			}
			continue
		}
		if pressedAt.IsZero() {
			continue
		}
		held := now.Sub(pressedAt)
		pressedAt = time.Time{}

		kind := ShortPress
		if held >= g.longPress {
			kind = LongPress
		}
		g.deliver(Event{Kind: kind, At: now})
	}
}

func (g *GPIO) deliver(ev Event) {
	select {
	case g.events <- ev:
	default:
		slog.Debug("input event dropped, queue full", "kind", ev.Kind)
	}
}
