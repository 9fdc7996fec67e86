package record

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

// DrainRecorder is the built-in recorder collaborator for development:
// it drains RTP from each participant's source and discards it, keeping
// only packet counts. Persisting recorders implement core.Recorder out
// of tree.
type DrainRecorder struct {
	mu      sync.Mutex
	cancels map[domain.ParticipantID]context.CancelFunc
}

func NewDrainRecorder() *DrainRecorder {
	return &DrainRecorder{cancels: make(map[domain.ParticipantID]context.CancelFunc)}
}

func (r *DrainRecorder) StartRecording(ctx context.Context, id domain.ParticipantID, src core.MediaSource) (core.RecorderHandle, error) {
	if src == nil {
		return "", domain.ErrUnknownParticipant
	}
	drainCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if old, ok := r.cancels[id]; ok {
		old()
	}
	r.cancels[id] = cancel
	r.mu.Unlock()

	go func() {
		var packets int
		for drainCtx.Err() == nil {
			if _, err := src.ReadRTP(); err != nil {
				break
			}
			packets++
		}
		log.Debug().Str("module", "record.drain").Str("participant", string(id)).Int("packets", packets).Msg("drain finished")
	}()

	return core.RecorderHandle(uuid.NewString()), nil
}

func (r *DrainRecorder) StopRecording(_ context.Context, id domain.ParticipantID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.cancels[id]
	if !ok {
		return domain.ErrUnknownParticipant
	}
	cancel()
	delete(r.cancels, id)
	return nil
}
