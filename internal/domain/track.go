package domain

import "github.com/pion/webrtc/v4"

// TrackName is the opaque transport identifier of one media stream.
type TrackName string

// Track is one media stream owned by exactly one Participant.
// Kind is immutable after creation.
type Track struct {
	Name    TrackName           `json:"name"`
	Kind    webrtc.RTPCodecType `json:"kind"`
	Enabled bool                `json:"enabled"`
}

func NewTrack(name TrackName, kind webrtc.RTPCodecType, enabled bool) *Track {
	return &Track{Name: name, Kind: kind, Enabled: enabled}
}
