// Package signal is the signaling-channel adapter: one logical websocket
// connection per room membership, typed events in, typed commands out.
package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

type trackMsg struct {
	TrackName string `json:"trackName"`
	Kind      string `json:"kind"`
}

type announceMsg struct {
	Type            string     `json:"type"`
	ParticipantID   string     `json:"participantId"`
	ParticipantName string     `json:"participantName"`
	SessionID       string     `json:"sessionId"`
	Tracks          []trackMsg `json:"tracks"`
}

type participantLeftMsg struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	From          string `json:"from"`
}

type trackStateMsg struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
	Kind          string `json:"kind"`
	Enabled       bool   `json:"enabled"`
}

type existingParticipantsMsg struct {
	Type         string        `json:"type"`
	Participants []announceMsg `json:"participants"`
}

func parseKind(s string) (webrtc.RTPCodecType, bool) {
	switch s {
	case "audio":
		return webrtc.RTPCodecTypeAudio, true
	case "video":
		return webrtc.RTPCodecTypeVideo, true
	default:
		return webrtc.RTPCodecType(0), false
	}
}

func toAnnounce(m announceMsg) core.SessionAnnounce {
	ann := core.SessionAnnounce{
		ParticipantID: domain.ParticipantID(m.ParticipantID),
		Name:          m.ParticipantName,
		SessionID:     domain.SessionID(m.SessionID),
	}
	for _, t := range m.Tracks {
		kind, ok := parseKind(t.Kind)
		if !ok {
			log.Warn().Str("module", "signal").Str("kind", t.Kind).Msg("dropping track with unknown kind")
			continue
		}
		ann.Tracks = append(ann.Tracks, core.TrackInfo{Name: domain.TrackName(t.TrackName), Kind: kind})
	}
	return ann
}

// Decode turns a wire message into a fold event. Unknown types and
// malformed-but-parsable messages yield (nil, nil): dropped with a
// diagnostic, never a crash of the fold.
func Decode(data []byte) (core.Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad signal json: %w", err)
	}

	switch env.Type {
	case "session-announce":
		var m announceMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("bad session-announce: %w", err)
		}
		return toAnnounce(m), nil
	case "participant-left", "leave":
		var m participantLeftMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("bad participant-left: %w", err)
		}
		id := m.ParticipantID
		if id == "" {
			id = m.From
		}
		return core.ParticipantLeft{ParticipantID: domain.ParticipantID(id)}, nil
	case "track-state":
		var m trackStateMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("bad track-state: %w", err)
		}
		kind, ok := parseKind(m.Kind)
		if !ok {
			log.Warn().Str("module", "signal").Str("kind", m.Kind).Msg("dropping track-state with unknown kind")
			return nil, nil
		}
		return core.TrackStateChanged{
			ParticipantID: domain.ParticipantID(m.ParticipantID),
			Kind:          kind,
			Enabled:       m.Enabled,
		}, nil
	case "existing-participants":
		var m existingParticipantsMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("bad existing-participants: %w", err)
		}
		ev := core.ExistingParticipants{}
		for _, pm := range m.Participants {
			ev.Participants = append(ev.Participants, toAnnounce(pm))
		}
		return ev, nil
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		return nil, nil
	}
}
