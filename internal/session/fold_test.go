package session

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

func announce(id domain.ParticipantID, sid domain.SessionID, kinds ...webrtc.RTPCodecType) core.SessionAnnounce {
	ann := core.SessionAnnounce{ParticipantID: id, Name: string(id), SessionID: sid}
	for _, k := range kinds {
		ann.Tracks = append(ann.Tracks, core.TrackInfo{
			Name: domain.TrackName(string(id) + "-" + k.String()),
			Kind: k,
		})
	}
	return ann
}

func TestApply_sessionAnnounce(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo))

	p, ok := room.Participant("p1")
	require.True(t, ok)
	assert.False(t, p.IsMuted, "announced audio track implies unmuted")
	assert.True(t, p.IsVideoOn)
	assert.Len(t, p.Tracks, 2)

	bySession, ok := room.BySession("sess-1")
	require.True(t, ok)
	assert.Same(t, p, bySession)
}

func TestApply_announceIdempotent(t *testing.T) {
	once := newTestRoom(t)
	once.Apply(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio))

	twice := newTestRoom(t)
	twice.Apply(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio))
	twice.Apply(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio))

	assert.Equal(t, once.Participants(), twice.Participants())
}

func TestApply_deterministicFold(t *testing.T) {
	events := []core.Event{
		core.ExistingParticipants{Participants: []core.SessionAnnounce{
			announce("p1", "sess-1", webrtc.RTPCodecTypeAudio),
			announce("p2", "sess-2", webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo),
		}},
		core.TrackStateChanged{ParticipantID: "p2", Kind: webrtc.RTPCodecTypeAudio, Enabled: false},
		core.SpeakingChanged{ParticipantID: "p1", Speaking: true},
		core.SessionAnnounce{ParticipantID: "p3", Name: "p3", SessionID: "sess-3"},
		core.ParticipantLeft{ParticipantID: "p1"},
	}

	replay := func() *Room {
		room := newTestRoom(t)
		for _, ev := range events {
			room.Apply(ev)
		}
		return room
	}

	a, b := replay(), replay()
	assert.Equal(t, a.Participants(), b.Participants(), "same sequence from same base state must yield identical state")
}

func TestApply_trackStateBeforeJoinIsNoop(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(core.TrackStateChanged{ParticipantID: "p2", Kind: webrtc.RTPCodecTypeAudio, Enabled: false})

	assert.Equal(t, 1, room.Len(), "no participant may be created")
	_, ok := room.Participant("p2")
	assert.False(t, ok)
}

func TestApply_existingParticipantsSnapshot(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(core.ExistingParticipants{Participants: []core.SessionAnnounce{
		announce("p1", "sess-1", webrtc.RTPCodecTypeAudio),
		announce("p2", "sess-2", webrtc.RTPCodecTypeAudio),
	}})

	require.Equal(t, 3, room.Len())
	var order []domain.ParticipantID
	for _, p := range room.Participants() {
		order = append(order, p.ID)
	}
	assert.Equal(t, []domain.ParticipantID{domain.SelfID, "p1", "p2"}, order)
}

func TestApply_speakingOnlyWhileUnmuted(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio))

	room.Apply(core.SpeakingChanged{ParticipantID: "p1", Speaking: true})
	p, _ := room.Participant("p1")
	assert.True(t, p.IsSpeaking)

	// Muting invalidates the derived speaking state and further
	// transitions are ignored until unmuted.
	room.Apply(core.TrackStateChanged{ParticipantID: "p1", Kind: webrtc.RTPCodecTypeAudio, Enabled: false})
	assert.False(t, p.IsSpeaking)

	room.Apply(core.SpeakingChanged{ParticipantID: "p1", Speaking: true})
	assert.False(t, p.IsSpeaking)
}

func TestApply_remoteRemovalOfSelfDropped(t *testing.T) {
	room := newTestRoom(t)
	removed := room.Apply(core.ParticipantLeft{ParticipantID: domain.SelfID})
	assert.Nil(t, removed)
	assert.Equal(t, 1, room.Len())
}

func TestApply_participantLeftReportsRemoval(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio))

	removed := room.Apply(core.ParticipantLeft{ParticipantID: "p1"})
	assert.Equal(t, []domain.ParticipantID{"p1"}, removed)

	removed = room.Apply(core.ParticipantLeft{ParticipantID: "p1"})
	assert.Nil(t, removed, "duplicate delivery must be a no-op")
}

func TestApply_trackStateForReservedIDDropped(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(core.TrackStateChanged{ParticipantID: domain.SelfID, Kind: webrtc.RTPCodecTypeAudio, Enabled: true})

	self := room.Self()
	require.NotNil(t, self)
	assert.True(t, self.IsMuted, "the wire must not unmute the local participant")
	assert.False(t, self.IsVideoOn)
}

func TestApply_announceWithReservedIDDropped(t *testing.T) {
	room := newTestRoom(t)
	room.Apply(announce(domain.SelfID, "sess-x", webrtc.RTPCodecTypeAudio))

	self := room.Self()
	require.NotNil(t, self)
	assert.Equal(t, "me", self.Name)
	assert.Empty(t, self.SessionID)
}
