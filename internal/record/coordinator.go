// Package record orchestrates per-participant recorders around the
// session state machine, with all-or-nothing start semantics degraded
// gracefully to partial failure.
package record

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

// State is the coordinator lifecycle. OnParticipantLeft is a
// self-transition within Recording.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// PartialRecordingFailure reports participants whose recorder failed to
// open or close. The session proceeds degraded; the failure list is
// surfaced, never silently dropped.
type PartialRecordingFailure struct {
	Failures map[domain.ParticipantID]error
}

func (e *PartialRecordingFailure) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return fmt.Sprintf("recording degraded for participants: %s", strings.Join(ids, ", "))
}

// ParticipantSource pairs a participant with its resolvable media source.
type ParticipantSource struct {
	ID     domain.ParticipantID
	Source core.MediaSource
}

// Summary is the finalized session metadata returned by StopSession.
type Summary struct {
	DurationSeconds int64                  `json:"duration_seconds"`
	Participants    []domain.ParticipantID `json:"participants"`
}

// Coordinator drives the external recorder collaborator. RecordingSession
// state transitions only happen here, never via signaling events.
type Coordinator struct {
	rec        core.Recorder
	tickPeriod time.Duration

	mu         sync.Mutex
	state      State
	session    domain.RecordingSession
	active     map[domain.ParticipantID]struct{}
	recorded   []domain.ParticipantID
	cancelTick context.CancelFunc
}

func NewCoordinator(rec core.Recorder) *Coordinator {
	return &Coordinator{
		rec:        rec,
		tickPeriod: time.Second,
		active:     make(map[domain.ParticipantID]struct{}),
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current recording-session state.
func (c *Coordinator) Session() domain.RecordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() domain.RecordingSession {
	s := c.session
	s.ActiveRecordings = make([]domain.ParticipantID, 0, len(c.active))
	for id := range c.active {
		s.ActiveRecordings = append(s.ActiveRecordings, id)
	}
	sort.Slice(s.ActiveRecordings, func(i, j int) bool {
		return s.ActiveRecordings[i] < s.ActiveRecordings[j]
	})
	return s
}

// StartSession opens a recorder for every participant with a resolvable
// source. Individual failures are logged and excluded but never abort the
// session: the returned error is a *PartialRecordingFailure listing them.
func (c *Coordinator) StartSession(ctx context.Context, sources []ParticipantSource) (domain.RecordingSession, error) {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return domain.RecordingSession{}, domain.ErrRecordingActive
	}
	c.state = StateStarting
	c.mu.Unlock()

	var (
		wg       sync.WaitGroup
		resMu    sync.Mutex
		opened   = make(map[domain.ParticipantID]struct{}, len(sources))
		failures = make(map[domain.ParticipantID]error)
	)
	for _, ps := range sources {
		wg.Add(1)
		go func(ps ParticipantSource) {
			defer wg.Done()
			handle, err := c.rec.StartRecording(ctx, ps.ID, ps.Source)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("module", "record").Str("participant", string(ps.ID)).Msg("recorder open failed")
				failures[ps.ID] = err
				return
			}
			log.Info().Str("module", "record").Str("participant", string(ps.ID)).Str("handle", string(handle)).Msg("recorder opened")
			opened[ps.ID] = struct{}{}
		}(ps)
	}
	wg.Wait()

	tickCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.state = StateRecording
	c.active = opened
	c.recorded = c.recorded[:0]
	for id := range opened {
		c.recorded = append(c.recorded, id)
	}
	sort.Slice(c.recorded, func(i, j int) bool { return c.recorded[i] < c.recorded[j] })
	c.session = domain.RecordingSession{IsActive: true, StartedAt: time.Now()}
	c.cancelTick = cancel
	snap := c.snapshotLocked()
	c.mu.Unlock()

	go c.tick(tickCtx)

	if len(failures) > 0 {
		return snap, &PartialRecordingFailure{Failures: failures}
	}
	return snap, nil
}

// tick increments elapsed seconds while the session is active. It is
// canceled before recorders close so the counter never drifts past the
// true stop instant.
func (c *Coordinator) tick(ctx context.Context) {
	ticker := time.NewTicker(c.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.session.IsActive {
				c.session.ElapsedSeconds++
			}
			c.mu.Unlock()
		}
	}
}

// StopSession closes every open recorder in parallel, best effort: one
// stuck close never blocks the others, and IsActive drops to false even
// when closes fail. Close failures are reported, not fatal.
func (c *Coordinator) StopSession(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return Summary{}, domain.ErrRecordingNotActive
	}
	c.state = StateStopping
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
	toClose := make([]domain.ParticipantID, 0, len(c.active))
	for id := range c.active {
		toClose = append(toClose, id)
	}
	c.mu.Unlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  error
	)
	for _, id := range toClose {
		wg.Add(1)
		go func(id domain.ParticipantID) {
			defer wg.Done()
			if err := c.rec.StopRecording(ctx, id); err != nil {
				log.Error().Err(err).Str("module", "record").Str("participant", string(id)).Msg("recorder close failed")
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("stop %s: %w", id, err))
				errMu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	c.mu.Lock()
	summary := Summary{
		DurationSeconds: c.session.ElapsedSeconds,
		Participants:    append([]domain.ParticipantID(nil), c.recorded...),
	}
	c.session.IsActive = false
	c.active = make(map[domain.ParticipantID]struct{})
	c.state = StateStopped
	c.mu.Unlock()

	log.Info().Str("module", "record").Int64("duration_s", summary.DurationSeconds).Int("participants", len(summary.Participants)).Msg("recording session stopped")
	return summary, errs
}

// OnParticipantLeft closes that participant's recorder if one is open.
// The overall session keeps running.
func (c *Coordinator) OnParticipantLeft(ctx context.Context, id domain.ParticipantID) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return
	}
	if _, ok := c.active[id]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.active, id)
	c.mu.Unlock()

	if err := c.rec.StopRecording(ctx, id); err != nil {
		log.Error().Err(err).Str("module", "record").Str("participant", string(id)).Msg("recorder close on leave failed")
	}
}
