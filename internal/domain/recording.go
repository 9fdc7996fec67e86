package domain

import "time"

// RecordingSession is the state of one multi-participant recording.
// IsActive transitions only via the recording coordinator.
type RecordingSession struct {
	IsActive       bool      `json:"is_active"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`

	// ActiveRecordings lists participants with a currently-open recorder.
	// A strict subset of room membership means the session is degraded.
	ActiveRecordings []ParticipantID `json:"active_recordings,omitempty"`
}
