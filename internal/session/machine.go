package session

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

// Phase is the join/leave lifecycle of the local membership.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseActive
	PhaseLeaving
	PhaseLeft
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseActive:
		return "active"
	case PhaseLeaving:
		return "leaving"
	case PhaseLeft:
		return "left"
	default:
		return "unknown"
	}
}

const defaultQueueSize = 64

// command is a local operation routed through the fold queue so it
// serializes with remote events.
type command struct {
	run  func()
	done chan struct{}
}

// Machine serializes all signaling events, local commands and producer
// signals through one queue with a single consumer. Snapshot readers take
// the lock; only the consumer mutates.
type Machine struct {
	mu      sync.RWMutex
	phase   Phase
	room    *Room
	conn    core.ConnState
	devices core.DeviceList

	sender  core.SignalSender
	sources map[webrtc.RTPCodecType]core.MediaSource

	queue     chan core.Event
	subs      []chan struct{}
	onRemoved func(domain.ParticipantID)
}

func NewMachine() *Machine {
	return &Machine{
		phase:   PhaseIdle,
		conn:    core.ConnClosed,
		sources: make(map[webrtc.RTPCodecType]core.MediaSource),
		queue:   make(chan core.Event, defaultQueueSize),
	}
}

// BindSender attaches the outbound signaling side. Call before Run.
func (m *Machine) BindSender(s core.SignalSender) { m.sender = s }

// OnParticipantRemoved registers the cascade hook invoked from the fold
// loop whenever a remote participant is removed. Call before Run.
func (m *Machine) OnParticipantRemoved(fn func(domain.ParticipantID)) { m.onRemoved = fn }

// Enqueue implements core.EventSink. It never blocks a producer; a full
// queue is reported as backpressure.
func (m *Machine) Enqueue(ev core.Event) error {
	select {
	case m.queue <- ev:
		return nil
	default:
		log.Warn().Str("module", "session.machine").Msg("event queue full, dropping")
		return core.ErrQueueFull
	}
}

// Run consumes the queue until ctx is done. Everything that mutates room
// state happens on this goroutine.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "session.machine").Msg("fold loop done")
			return
		case ev := <-m.queue:
			m.handle(ev)
			m.notify()
		}
	}
}

func (m *Machine) handle(ev core.Event) {
	if cmd, ok := ev.(command); ok {
		cmd.run()
		close(cmd.done)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch e := ev.(type) {
	case core.ConnStateChanged:
		m.conn = e.State
		if e.State == core.ConnFailed && m.phase == PhaseJoining {
			// Handshake failure: there is nothing to leave.
			m.phase = PhaseLeft
		}
		log.Info().Str("module", "session.machine").Str("state", string(e.State)).Msg("signal connection state")
	case core.DevicesChanged:
		m.devices = e.Devices
	default:
		if m.room == nil {
			log.Debug().Str("module", "session.machine").Msg("event before join, ignoring")
			return
		}
		removed := m.room.Apply(ev)
		if m.onRemoved != nil {
			for _, id := range removed {
				m.onRemoved(id)
			}
		}
	}
}

// exec runs fn on the consumer goroutine and waits for it.
func (m *Machine) exec(fn func()) error {
	cmd := command{run: fn, done: make(chan struct{})}
	if err := m.Enqueue(cmd); err != nil {
		return err
	}
	<-cmd.done
	return nil
}

// BeginJoin moves Idle -> Joining and seeds the room with the local
// participant.
func (m *Machine) BeginJoin(meta domain.Room, selfName string, isHost bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return domain.ErrInvalidOperation
	}
	self, err := domain.NewParticipant(domain.SelfID, selfName, isHost)
	if err != nil {
		return err
	}
	if isHost {
		meta.HostID = domain.SelfID
	}
	m.phase = PhaseJoining
	m.room = NewRoom(meta, self)
	log.Info().Str("module", "session.machine").Str("room", string(meta.ID)).Msg("joining")
	return nil
}

// CompleteJoin resolves the handshake: Joining -> Active on success,
// Joining -> Left on failure.
func (m *Machine) CompleteJoin(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseJoining {
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "session.machine").Msg("join handshake failed")
		m.phase = PhaseLeft
		m.room = nil
		return
	}
	m.phase = PhaseActive
}

// BeginLeave moves Active -> Leaving. Leave is best effort from here on:
// local cleanup proceeds whatever the channel manages to deliver.
func (m *Machine) BeginLeave() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseActive {
		return domain.ErrInvalidOperation
	}
	m.phase = PhaseLeaving
	return nil
}

// FinishLeave moves to Left unconditionally, releases local capture
// handles and discards room state. No transition out of Left.
func (m *Machine) FinishLeave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, src := range m.sources {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Str("module", "session.machine").Str("kind", kind.String()).Msg("closing local source")
		}
		delete(m.sources, kind)
	}
	m.phase = PhaseLeft
	m.room = nil
}

func (m *Machine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// SetLocalTrackEnabled flips the local track of the given kind and emits
// the outgoing track-state command. On explicit disable the capture handle
// is released immediately.
func (m *Machine) SetLocalTrackEnabled(kind webrtc.RTPCodecType, enabled bool) error {
	var opErr error
	err := m.exec(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.room == nil {
			opErr = domain.ErrInvalidOperation
			return
		}
		self := m.room.Self()
		if t, ok := self.TrackOfKind(kind); ok {
			t.Enabled = enabled
		}
		switch kind {
		case webrtc.RTPCodecTypeAudio:
			self.IsMuted = !enabled
			if !enabled {
				self.IsSpeaking = false
			}
		case webrtc.RTPCodecTypeVideo:
			self.IsVideoOn = enabled
		}
		if !enabled {
			if src, ok := m.sources[kind]; ok {
				if err := src.Close(); err != nil {
					log.Warn().Err(err).Str("module", "session.machine").Msg("releasing disabled source")
				}
				delete(m.sources, kind)
			}
		}
		if m.sender != nil {
			if err := m.sender.SendTrackState(kind, enabled); err != nil {
				// Local state is already applied; the transport failure is
				// the collaborator's to recover from.
				opErr = err
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// ReplaceLocalTrack atomically swaps the local track of the given kind for
// a freshly acquired source, preserving the previous enabled value so a
// device hot-swap never silently unmutes. The old handle is released only
// after the new one is in place.
func (m *Machine) ReplaceLocalTrack(kind webrtc.RTPCodecType, src core.MediaSource) error {
	var opErr error
	err := m.exec(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.room == nil {
			opErr = domain.ErrInvalidOperation
			return
		}
		self := m.room.Self()
		enabled := true
		if prev, ok := self.TrackOfKind(kind); ok {
			enabled = prev.Enabled
			delete(self.Tracks, prev.Name)
		} else if kind == webrtc.RTPCodecTypeAudio {
			enabled = !self.IsMuted
		}
		name := domain.TrackName(src.Track().ID())
		self.Tracks[name] = domain.NewTrack(name, kind, enabled)

		old := m.sources[kind]
		m.sources[kind] = src
		if old != nil {
			if err := old.Close(); err != nil {
				log.Warn().Err(err).Str("module", "session.machine").Str("kind", kind.String()).Msg("releasing replaced source")
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// LocalSource returns the capture handle currently backing the local track
// of the given kind.
func (m *Machine) LocalSource(kind webrtc.RTPCodecType) (core.MediaSource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[kind]
	return src, ok
}

// Subscribe returns a coalescing change notification channel.
func (m *Machine) Subscribe() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{}, 1)
	m.subs = append(m.subs, ch)
	return ch
}

func (m *Machine) notify() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
