// Package session drives the installation's visitor cycle: a single-visitor
// state machine from attract mode through listening, recording, generation,
// style selection, and display, back to attract. The controller is the only
// writer of session state; everything long-running happens off the control
// loop.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/waterbook/waterbook/internal/feature"
	"github.com/waterbook/waterbook/internal/onomatopoeia"
	"github.com/waterbook/waterbook/internal/style"
	"github.com/waterbook/waterbook/pkg/audio"
)

// State is one phase of the visitor cycle.
type State string

const (
	// StateAttract idles between visitors.
	StateAttract State = "attract"

	// StateListen has the microphone open while the guide plays; recording
	// starts when the guide ends or on a long press.
	StateListen State = "listen"

	// StateRecord captures the visitor's sound.
	StateRecord State = "record"

	// StateGenerate analyses the recording and produces candidates.
	StateGenerate State = "generate"

	// StateSelect lets the visitor cycle through styles.
	StateSelect State = "select"

	// StateDisplay shows the finished piece.
	StateDisplay State = "display"

	// StateReset cleans up before the next visitor.
	StateReset State = "reset"
)

// Degraded-path reasons recorded on the session and in metrics.
const (
	ReasonCaptureUnavailable = "capture_unavailable"
	ReasonGenerationTimeout  = "generation_timeout"
	ReasonGenerationError    = "generation_error"
	ReasonEmptyRecording     = "empty_recording"
)

// Session is the record of one visitor cycle. The controller mutates it under
// its own lock; [Controller.Current] returns copies.
type Session struct {
	ID        string
	StartedAt time.Time

	State     State
	EnteredAt time.Time

	Recording  audio.Waveform
	RecordedAt time.Time

	Summary    feature.Summary
	Candidates []onomatopoeia.Candidate
	Style      style.ID
	Parameters style.Parameters

	Degraded bool
	Reasons  []string
}

// newSession starts a blank session record in attract mode.
func newSession(now time.Time) Session {
	return Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		State:     StateAttract,
		EnteredAt: now,
	}
}

// markDegraded records one fallback reason, deduplicated.
func (s *Session) markDegraded(reason string) {
	s.Degraded = true
	for _, r := range s.Reasons {
		if r == reason {
			return
		}
	}
	s.Reasons = append(s.Reasons, reason)
}
