// Package core defines the interfaces and event types shared between the
// session state machine and its producers (signal channel, device registry,
// voice-activity monitor) and collaborators (recorder, media relay).
package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/avetan/studio/internal/domain"
)

// ConnState is the signaling-channel connection state as surfaced to the
// state machine. Reconnect policy belongs to the collaborator, not here.
type ConnState string

const (
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosed     ConnState = "closed"
	ConnFailed     ConnState = "failed"
)

// Event is anything the session state machine folds: wire events, device
// and speaking signals, local commands. All events flow through one queue
// so folds never race each other.
type Event = any

// TrackInfo is the wire-level description of one published track.
type TrackInfo struct {
	Name domain.TrackName
	Kind webrtc.RTPCodecType
}

// SessionAnnounce means a participant's published tracks became known.
type SessionAnnounce struct {
	ParticipantID domain.ParticipantID
	Name          string
	SessionID     domain.SessionID
	Tracks        []TrackInfo
}

// ParticipantLeft means a remote participant left or disconnected.
type ParticipantLeft struct {
	ParticipantID domain.ParticipantID
}

// TrackStateChanged carries a remote enable/disable for one track kind.
// It may arrive before the participant is known; the fold treats that
// as a no-op.
type TrackStateChanged struct {
	ParticipantID domain.ParticipantID
	Kind          webrtc.RTPCodecType
	Enabled       bool
}

// ExistingParticipants is the bulk catch-up snapshot delivered to a
// newly joined participant.
type ExistingParticipants struct {
	Participants []SessionAnnounce
}

// ConnStateChanged reports a signaling-channel transition.
type ConnStateChanged struct {
	State ConnState
	Err   error
}

// SpeakingChanged is produced by the voice-activity monitor for the local
// participant and by signaling for remote ones.
type SpeakingChanged struct {
	ParticipantID domain.ParticipantID
	Speaking      bool
}

// DevicesChanged reports a platform device-set change.
type DevicesChanged struct {
	Devices DeviceList
}
