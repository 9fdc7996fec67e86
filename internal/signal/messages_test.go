package signal

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

func TestDecode(t *testing.T) {
	t.Run("session-announce", func(t *testing.T) {
		data := []byte(`{
			"type": "session-announce",
			"participantId": "p1",
			"participantName": "Alice",
			"sessionId": "sess-1",
			"tracks": [
				{"trackName": "tr-a", "kind": "audio"},
				{"trackName": "tr-v", "kind": "video"}
			]
		}`)
		ev, err := Decode(data)
		require.NoError(t, err)

		ann, ok := ev.(core.SessionAnnounce)
		require.True(t, ok)
		assert.Equal(t, domain.ParticipantID("p1"), ann.ParticipantID)
		assert.Equal(t, "Alice", ann.Name)
		assert.Equal(t, domain.SessionID("sess-1"), ann.SessionID)
		require.Len(t, ann.Tracks, 2)
		assert.Equal(t, webrtc.RTPCodecTypeAudio, ann.Tracks[0].Kind)
		assert.Equal(t, domain.TrackName("tr-v"), ann.Tracks[1].Name)
	})

	t.Run("participant-left", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type": "participant-left", "participantId": "p1"}`))
		require.NoError(t, err)
		assert.Equal(t, core.ParticipantLeft{ParticipantID: "p1"}, ev)
	})

	t.Run("leave uses from as fallback", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type": "leave", "from": "p2"}`))
		require.NoError(t, err)
		assert.Equal(t, core.ParticipantLeft{ParticipantID: "p2"}, ev)
	})

	t.Run("track-state", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type": "track-state", "participantId": "p1", "kind": "audio", "enabled": false}`))
		require.NoError(t, err)
		assert.Equal(t, core.TrackStateChanged{
			ParticipantID: "p1",
			Kind:          webrtc.RTPCodecTypeAudio,
			Enabled:       false,
		}, ev)
	})

	t.Run("track-state with unknown kind dropped", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type": "track-state", "participantId": "p1", "kind": "screen", "enabled": true}`))
		assert.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("existing-participants", func(t *testing.T) {
		data := []byte(`{
			"type": "existing-participants",
			"participants": [
				{"participantId": "p1", "participantName": "Alice", "sessionId": "s1", "tracks": []},
				{"participantId": "p2", "participantName": "Bob", "sessionId": "s2",
				 "tracks": [{"trackName": "tr", "kind": "audio"}]}
			]
		}`)
		ev, err := Decode(data)
		require.NoError(t, err)

		snap, ok := ev.(core.ExistingParticipants)
		require.True(t, ok)
		require.Len(t, snap.Participants, 2)
		assert.Equal(t, domain.ParticipantID("p1"), snap.Participants[0].ParticipantID)
		assert.Len(t, snap.Participants[1].Tracks, 1)
	})

	t.Run("unknown type dropped without error", func(t *testing.T) {
		ev, err := Decode([]byte(`{"type": "telemetry", "payload": 42}`))
		assert.NoError(t, err)
		assert.Nil(t, ev, "unknown kinds are forward-compatible no-ops")
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		_, err := Decode([]byte(`{`))
		assert.Error(t, err)
	})
}
