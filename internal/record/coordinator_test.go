package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

type mockRecorder struct {
	mu        sync.Mutex
	failStart map[domain.ParticipantID]error
	failStop  map[domain.ParticipantID]error
	started   []domain.ParticipantID
	stopped   []domain.ParticipantID
}

func (m *mockRecorder) StartRecording(_ context.Context, id domain.ParticipantID, _ core.MediaSource) (core.RecorderHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failStart[id]; ok {
		return "", err
	}
	m.started = append(m.started, id)
	return core.RecorderHandle("handle-" + string(id)), nil
}

func (m *mockRecorder) StopRecording(_ context.Context, id domain.ParticipantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failStop[id]; ok {
		return err
	}
	m.stopped = append(m.stopped, id)
	return nil
}

func (m *mockRecorder) stoppedIDs() []domain.ParticipantID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ParticipantID(nil), m.stopped...)
}

func threeSources() []ParticipantSource {
	return []ParticipantSource{
		{ID: domain.SelfID},
		{ID: "p1"},
		{ID: "p2"},
	}
}

func TestStartSession(t *testing.T) {
	t.Run("starting twice is invalid", func(t *testing.T) {
		c := NewCoordinator(&mockRecorder{})
		_, err := c.StartSession(context.Background(), threeSources())
		require.NoError(t, err)

		_, err = c.StartSession(context.Background(), threeSources())
		assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("partial failure keeps the session alive", func(t *testing.T) {
		rec := &mockRecorder{failStart: map[domain.ParticipantID]error{
			"p2": errors.New("device busy"),
		}}
		c := NewCoordinator(rec)

		sess, err := c.StartSession(context.Background(), threeSources())

		var partial *PartialRecordingFailure
		require.ErrorAs(t, err, &partial)
		assert.Contains(t, partial.Failures, domain.ParticipantID("p2"))

		assert.True(t, sess.IsActive, "a degraded session is still a session")
		assert.ElementsMatch(t,
			[]domain.ParticipantID{domain.SelfID, "p1"},
			sess.ActiveRecordings)
	})
}

func TestStopSession(t *testing.T) {
	t.Run("stop without start is invalid", func(t *testing.T) {
		c := NewCoordinator(&mockRecorder{})
		_, err := c.StopSession(context.Background())
		assert.ErrorIs(t, err, domain.ErrRecordingNotActive)
	})

	t.Run("deactivates unconditionally despite close failures", func(t *testing.T) {
		rec := &mockRecorder{failStop: map[domain.ParticipantID]error{
			"p1": errors.New("flush failed"),
		}}
		c := NewCoordinator(rec)
		_, err := c.StartSession(context.Background(), threeSources())
		require.NoError(t, err)

		summary, err := c.StopSession(context.Background())
		assert.Error(t, err, "close failures are reported")
		assert.False(t, c.Session().IsActive)
		assert.Equal(t, StateStopped, c.State())
		assert.ElementsMatch(t,
			[]domain.ParticipantID{domain.SelfID, "p1", "p2"},
			summary.Participants)

		// Everyone except the failed close got stopped.
		assert.ElementsMatch(t, []domain.ParticipantID{domain.SelfID, "p2"}, rec.stoppedIDs())
	})
}

func TestOnParticipantLeft(t *testing.T) {
	rec := &mockRecorder{}
	c := NewCoordinator(rec)
	_, err := c.StartSession(context.Background(), threeSources())
	require.NoError(t, err)

	c.OnParticipantLeft(context.Background(), "p1")

	sess := c.Session()
	assert.True(t, sess.IsActive, "session keeps running")
	assert.NotContains(t, sess.ActiveRecordings, domain.ParticipantID("p1"))
	assert.Equal(t, []domain.ParticipantID{"p1"}, rec.stoppedIDs())

	// Unknown or already-closed participants are a no-op.
	c.OnParticipantLeft(context.Background(), "p1")
	c.OnParticipantLeft(context.Background(), "ghost")
	assert.Equal(t, []domain.ParticipantID{"p1"}, rec.stoppedIDs())
}

func TestElapsedTicking(t *testing.T) {
	c := NewCoordinator(&mockRecorder{})
	c.tickPeriod = 10 * time.Millisecond

	_, err := c.StartSession(context.Background(), threeSources())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return c.Session().ElapsedSeconds >= 3
	}, time.Second, 5*time.Millisecond)

	summary, err := c.StopSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, c.Session().ElapsedSeconds, summary.DurationSeconds)

	// Ticking stops with the session: no drift past the stop instant.
	frozen := summary.DurationSeconds
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frozen, c.Session().ElapsedSeconds)
}
