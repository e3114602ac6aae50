// Package artifact hands completed session results to the external rendering
// pipeline: the raw waveform for archival, the feature summary, the ranked
// onomatopoeia candidates, the chosen style parameters, and a combined
// metadata record.
//
// Files are published with a write-to-temp-then-rename protocol so the
// external web server never observes a partial file, and the last completed
// artifact reference is swapped atomically so readers need no locks.
package artifact

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/waterbook/waterbook/internal/feature"
	"github.com/waterbook/waterbook/internal/onomatopoeia"
	"github.com/waterbook/waterbook/internal/style"
)

// Record is the combined metadata handed downstream for one session.
type Record struct {
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	RecordedAt time.Time `json:"recorded_at"`

	// Degraded marks sessions that completed via fallback values; Reasons
	// lists the subsystems that fell back.
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"degraded_reasons,omitempty"`

	Summary    feature.Summary          `json:"summary"`
	Candidates []onomatopoeia.Candidate `json:"candidates"`
	Parameters style.Parameters         `json:"parameters"`
}

// EncodeRecord serialises a record as JSON.
func EncodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a record previously produced by [EncodeRecord].
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("artifact: decode record: %w", err)
	}
	return r, nil
}
