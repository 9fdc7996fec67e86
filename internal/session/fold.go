package session

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

// Apply folds one remote event into the room. It is deterministic: the
// same event sequence from the same base state always yields the same
// state. Unknown event kinds are ignored. The returned slice lists
// participants removed by the event so callers can cascade cleanup.
func (r *Room) Apply(ev core.Event) []domain.ParticipantID {
	switch e := ev.(type) {
	case core.SessionAnnounce:
		r.applyAnnounce(e)
	case core.ExistingParticipants:
		for _, ann := range e.Participants {
			r.applyAnnounce(ann)
		}
	case core.ParticipantLeft:
		tracks, err := r.RemoveParticipant(e.ParticipantID)
		if err != nil {
			// A remote event can never evict the local participant.
			log.Warn().Str("module", "session.fold").Str("participant", string(e.ParticipantID)).Msg("dropping remote removal of self")
			return nil
		}
		if tracks == nil {
			return nil
		}
		return []domain.ParticipantID{e.ParticipantID}
	case core.TrackStateChanged:
		r.applyTrackState(e)
	case core.SpeakingChanged:
		if p, ok := r.participants[e.ParticipantID]; ok && !p.IsMuted {
			p.IsSpeaking = e.Speaking
		}
	default:
		log.Debug().Str("module", "session.fold").Type("event", ev).Msg("ignoring unknown event kind")
	}
	return nil
}

func (r *Room) applyAnnounce(e core.SessionAnnounce) {
	if e.ParticipantID == domain.SelfID {
		log.Warn().Str("module", "session.fold").Msg("dropping announce with reserved id")
		return
	}
	p, err := domain.NewParticipant(e.ParticipantID, e.Name, e.ParticipantID == r.meta.HostID)
	if err != nil {
		log.Warn().Err(err).Str("module", "session.fold").Msg("dropping malformed announce")
		return
	}
	p.SessionID = e.SessionID
	hasAudio, hasVideo := false, false
	for _, ti := range e.Tracks {
		p.Tracks[ti.Name] = domain.NewTrack(ti.Name, ti.Kind, true)
		switch ti.Kind {
		case webrtc.RTPCodecTypeAudio:
			hasAudio = true
		case webrtc.RTPCodecTypeVideo:
			hasVideo = true
		}
	}
	p.IsMuted = !hasAudio
	p.IsVideoOn = hasVideo
	r.AddParticipant(p)
}

// applyTrackState tolerates state for a participant that has not joined
// yet: the signaling channel gives no cross-participant ordering, so that
// is a no-op rather than an error.
func (r *Room) applyTrackState(e core.TrackStateChanged) {
	if e.ParticipantID == domain.SelfID {
		// Local track state changes only via local commands; the wire
		// echoing our own id back must not flip mute state.
		log.Warn().Str("module", "session.fold").Msg("dropping remote track state with reserved id")
		return
	}
	p, ok := r.participants[e.ParticipantID]
	if !ok {
		log.Debug().Str("module", "session.fold").Str("participant", string(e.ParticipantID)).Msg("track state for unknown participant, ignoring")
		return
	}
	for _, t := range p.Tracks {
		if t.Kind == e.Kind {
			t.Enabled = e.Enabled
		}
	}
	switch e.Kind {
	case webrtc.RTPCodecTypeAudio:
		p.IsMuted = !e.Enabled
		if p.IsMuted {
			p.IsSpeaking = false
		}
	case webrtc.RTPCodecTypeVideo:
		p.IsVideoOn = e.Enabled
	}
}
