package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

type fakeSource struct {
	track  *webrtc.TrackLocalStaticRTP
	mu     sync.Mutex
	closed bool
}

func newFakeSource(t *testing.T, id string) *fakeSource {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, id, "test")
	require.NoError(t, err)
	return &fakeSource{track: track}
}

func (f *fakeSource) Track() *webrtc.TrackLocalStaticRTP { return f.track }
func (f *fakeSource) ReadRTP() (*rtp.Packet, error)      { return nil, io.EOF }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type trackStateCall struct {
	kind    webrtc.RTPCodecType
	enabled bool
}

type fakeSender struct {
	mu     sync.Mutex
	states []trackStateCall
	leaves int
}

func (f *fakeSender) SendTrackState(kind webrtc.RTPCodecType, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, trackStateCall{kind, enabled})
	return nil
}

func (f *fakeSender) SendLeave() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeSender) calls() []trackStateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]trackStateCall(nil), f.states...)
}

func newRunningMachine(t *testing.T) (*Machine, *fakeSender) {
	t.Helper()
	m := NewMachine()
	sender := &fakeSender{}
	m.BindSender(sender)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m, sender
}

func joinActive(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.BeginJoin(domain.Room{ID: "ABC123", Name: "studio"}, "me", true))
	m.CompleteJoin(nil)
	require.Equal(t, PhaseActive, m.Phase())
}

func TestMachine_phases(t *testing.T) {
	t.Run("join happy path", func(t *testing.T) {
		m, _ := newRunningMachine(t)
		assert.Equal(t, PhaseIdle, m.Phase())

		require.NoError(t, m.BeginJoin(domain.Room{ID: "ABC123"}, "me", true))
		assert.Equal(t, PhaseJoining, m.Phase())
		assert.ErrorIs(t, m.BeginJoin(domain.Room{ID: "ABC123"}, "me", true), domain.ErrInvalidOperation)

		m.CompleteJoin(nil)
		assert.Equal(t, PhaseActive, m.Phase())

		require.NoError(t, m.BeginLeave())
		assert.Equal(t, PhaseLeaving, m.Phase())
		m.FinishLeave()
		assert.Equal(t, PhaseLeft, m.Phase())
	})

	t.Run("handshake failure goes straight to left", func(t *testing.T) {
		m, _ := newRunningMachine(t)
		require.NoError(t, m.BeginJoin(domain.Room{ID: "ABC123"}, "me", false))
		m.CompleteJoin(errors.New("refused"))
		assert.Equal(t, PhaseLeft, m.Phase())
	})

	t.Run("connection failure while joining", func(t *testing.T) {
		m, _ := newRunningMachine(t)
		require.NoError(t, m.BeginJoin(domain.Room{ID: "ABC123"}, "me", false))
		require.NoError(t, m.Enqueue(core.ConnStateChanged{State: core.ConnFailed}))
		assert.Eventually(t, func() bool { return m.Phase() == PhaseLeft },
			time.Second, 5*time.Millisecond)
	})

	t.Run("leave before active is invalid", func(t *testing.T) {
		m, _ := newRunningMachine(t)
		assert.ErrorIs(t, m.BeginLeave(), domain.ErrInvalidOperation)
	})
}

func TestMachine_setLocalTrackEnabled(t *testing.T) {
	m, sender := newRunningMachine(t)
	joinActive(t, m)

	src := newFakeSource(t, "mic-1")
	require.NoError(t, m.ReplaceLocalTrack(webrtc.RTPCodecTypeAudio, src))

	require.NoError(t, m.SetLocalTrackEnabled(webrtc.RTPCodecTypeAudio, true))
	snap := m.Snapshot()
	require.NotNil(t, snap.Room)
	assert.False(t, snap.Room.Participants[0].IsMuted)
	assert.Equal(t, []trackStateCall{{webrtc.RTPCodecTypeAudio, true}}, sender.calls())

	// Explicit disable releases the capture handle immediately.
	require.NoError(t, m.SetLocalTrackEnabled(webrtc.RTPCodecTypeAudio, false))
	assert.True(t, src.isClosed())
	_, ok := m.LocalSource(webrtc.RTPCodecTypeAudio)
	assert.False(t, ok)

	snap = m.Snapshot()
	assert.True(t, snap.Room.Participants[0].IsMuted)
	assert.False(t, snap.Room.Participants[0].IsSpeaking)
}

func TestMachine_replaceLocalTrackPreservesEnabled(t *testing.T) {
	m, _ := newRunningMachine(t)
	joinActive(t, m)

	// Self starts muted, so the first acquired track comes up disabled.
	first := newFakeSource(t, "mic-1")
	require.NoError(t, m.ReplaceLocalTrack(webrtc.RTPCodecTypeAudio, first))

	second := newFakeSource(t, "mic-2")
	require.NoError(t, m.ReplaceLocalTrack(webrtc.RTPCodecTypeAudio, second))

	snap := m.Snapshot()
	self := snap.Room.Participants[0]
	require.Len(t, self.Tracks, 1)
	for _, track := range self.Tracks {
		assert.False(t, track.Enabled, "hot-swap must not silently unmute")
		assert.Equal(t, domain.TrackName("mic-2"), track.Name)
	}
	assert.True(t, first.isClosed(), "old handle released after swap")
	assert.False(t, second.isClosed())
}

func TestMachine_finishLeaveReleasesSources(t *testing.T) {
	m, _ := newRunningMachine(t)
	joinActive(t, m)

	src := newFakeSource(t, "mic-1")
	require.NoError(t, m.ReplaceLocalTrack(webrtc.RTPCodecTypeAudio, src))

	require.NoError(t, m.BeginLeave())
	m.FinishLeave()

	assert.True(t, src.isClosed())
	assert.Nil(t, m.Snapshot().Room)
}

func TestMachine_cascadeHookOnRemoteLeave(t *testing.T) {
	m := NewMachine()
	var (
		mu      sync.Mutex
		removed []domain.ParticipantID
	)
	m.OnParticipantRemoved(func(id domain.ParticipantID) {
		mu.Lock()
		defer mu.Unlock()
		removed = append(removed, id)
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)

	joinActive(t, m)
	require.NoError(t, m.Enqueue(announce("p1", "sess-1", webrtc.RTPCodecTypeAudio)))
	require.NoError(t, m.Enqueue(core.ParticipantLeft{ParticipantID: "p1"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(removed) == 1 && removed[0] == domain.ParticipantID("p1")
	}, time.Second, 5*time.Millisecond)
}

func TestMachine_enqueueBackpressure(t *testing.T) {
	m := NewMachine() // not running: queue fills up
	for i := 0; i < defaultQueueSize; i++ {
		require.NoError(t, m.Enqueue(core.SpeakingChanged{ParticipantID: domain.SelfID}))
	}
	assert.ErrorIs(t, m.Enqueue(core.SpeakingChanged{ParticipantID: domain.SelfID}), core.ErrQueueFull)
}
