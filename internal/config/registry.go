package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/waterbook/waterbook/internal/input"
	"github.com/waterbook/waterbook/pkg/audio"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions. It is safe for
// concurrent use. Hardware-specific constructors register themselves here so
// the core never imports driver packages directly.
type Registry struct {
	mu      sync.RWMutex
	capture map[CaptureBackend]func(AudioConfig) (audio.Capture, error)
	input   map[InputBackend]func(InputConfig) (input.Source, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		capture: make(map[CaptureBackend]func(AudioConfig) (audio.Capture, error)),
		input:   make(map[InputBackend]func(InputConfig) (input.Source, error)),
	}
}

// RegisterCapture registers a capture backend factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterCapture(name CaptureBackend, factory func(AudioConfig) (audio.Capture, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// RegisterInput registers an input backend factory under name.
func (r *Registry) RegisterInput(name InputBackend, factory func(InputConfig) (input.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.input[name] = factory
}

// CreateCapture instantiates the capture backend selected by cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateCapture(cfg AudioConfig) (audio.Capture, error) {
	r.mu.RLock()
	factory, ok := r.capture[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}

// CreateInput instantiates the input backend selected by cfg.Backend.
func (r *Registry) CreateInput(cfg InputConfig) (input.Source, error) {
	r.mu.RLock()
	factory, ok := r.input[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: input/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}
