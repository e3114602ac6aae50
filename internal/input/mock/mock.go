// Package mock provides an input source test double with call recording.
package mock

import (
	"context"
	"sync"

	"github.com/waterbook/waterbook/internal/input"
)

// Source is a scripted input source. Push events with [Source.Press]; the
// zero value is ready to use.
type Source struct {
	// StartError, when set, is returned by Start.
	StartError error

	// CloseError, when set, is returned by Close.
	CloseError error

	mu sync.Mutex

	// CallCountStart is incremented on every Start call.
	CallCountStart int

	// CallCountClose is incremented on every Close call.
	CallCountClose int

	events chan input.Event
	closed bool
}

var _ input.Source = (*Source)(nil)

// Start implements [input.Source].
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.StartError != nil {
		return s.StartError
	}
	s.ensureChannel()
	return nil
}

// Events implements [input.Source].
func (s *Source) Events() <-chan input.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureChannel()
	return s.events
}

// Close implements [input.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if s.CloseError != nil {
		return s.CloseError
	}
	if !s.closed {
		s.ensureChannel()
		close(s.events)
		s.closed = true
	}
	return nil
}

// Press delivers one event of the given kind, blocking until the consumer
// receives it.
func (s *Source) Press(ev input.Event) {
	s.mu.Lock()
	s.ensureChannel()
	ch := s.events
	s.mu.Unlock()
	ch <- ev
}

func (s *Source) ensureChannel() {
	if s.events == nil {
		s.events = make(chan input.Event, 8)
	}
}
