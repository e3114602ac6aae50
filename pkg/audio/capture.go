// Package audio defines the capture capability contract and frame types used
// by the installation core.
//
// The central abstraction is [Capture] — a backend that acquires a continuous
// audio stream and exposes it as fixed-length [Frame] windows. Implementations
// are provided by backend subpackages (audio/device for a real microphone,
// audio/synthetic for a deterministic generator used on degraded sessions and
// in tests). The interface is intentionally narrow so the session controller
// stays decoupled from device details.
//
// This package lives under pkg/ because external capture backends are expected
// to implement [Capture].
package audio

import (
	"context"
	"errors"
)

// ErrNoFrame is returned by [Capture.Pull] when no unread frame is available.
// It is a flow-control signal, not a failure.
var ErrNoFrame = errors.New("audio: no new frame")

// ErrDeviceUnavailable reports that the capture device could not be opened or
// read. Callers recover by falling back to a synthetic backend; the session is
// marked degraded but never aborted.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// Config holds the capture parameters resolved from the configuration file.
type Config struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is the device channel count. Frames are always folded to mono.
	Channels int

	// FrameLength is the number of mono samples per frame.
	FrameLength int
}

// Capture acquires a continuous audio stream and exposes fixed-length frames.
//
// The contract the session controller relies on:
//
//   - Start begins continuous sampling. If the device cannot be opened the
//     backend retries with bounded backoff internally or returns
//     [ErrDeviceUnavailable] so the caller can substitute a synthetic backend.
//   - Pull never blocks beyond the duration of one frame. It returns the most
//     recent unread frame, or [ErrNoFrame] when the producer has not delivered
//     a new one yet.
//   - Stop flushes, ends sampling, and returns the complete raw waveform for
//     archival. After Stop the Capture may be reused with a new Start.
//
// Implementations must be safe for concurrent use of Pull against the
// internal producer goroutine.
type Capture interface {
	Start(ctx context.Context, cfg Config) error
	Pull() (Frame, error)
	Stop() (Waveform, error)
}
