// Package domain contains entity without logic, just meta-data
package domain

import (
	"github.com/pion/webrtc/v4"
)

const MaxParticipantNameLen = 36

type ParticipantID string

// SelfID is the reserved identifier of the local participant.
// Remote participants must never be registered under it.
const SelfID ParticipantID = "self"

// SessionID is the transport-layer session identifier used for
// track subscription. It is a lookup key, not an owned relation.
type SessionID string

// Participant is one human endpoint in a Room, local or remote.
type Participant struct {
	ID     ParticipantID `json:"id"`
	Name   string        `json:"name"`
	IsHost bool          `json:"is_host"`

	// IsMuted and IsVideoOn reflect observed track-enabled state and are
	// meaningful even while no track of that kind exists.
	IsMuted   bool `json:"is_muted"`
	IsVideoOn bool `json:"is_video_on"`

	// IsSpeaking is derived by the voice-activity monitor and is only
	// valid while IsMuted is false.
	IsSpeaking bool `json:"is_speaking"`

	SessionID SessionID            `json:"session_id,omitempty"`
	Tracks    map[TrackName]*Track `json:"tracks,omitempty"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, name string, isHost bool) (*Participant, error) {
	if id == "" {
		return nil, ErrParticipantIDEmpty
	}
	if len(name) > MaxParticipantNameLen {
		name = name[:MaxParticipantNameLen]
	}
	return &Participant{
		ID:      id,
		Name:    name,
		IsHost:  isHost,
		IsMuted: true,
		Tracks:  make(map[TrackName]*Track),
	}, nil
}

// TrackOfKind returns the first track of the given kind, if any.
func (p *Participant) TrackOfKind(kind webrtc.RTPCodecType) (*Track, bool) {
	for _, t := range p.Tracks {
		if t.Kind == kind {
			return t, true
		}
	}
	return nil, false
}
