// Package app wires the session core to its collaborators: room backend,
// signaling channel, device registry, voice-activity monitor and recording
// coordinator.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/config"
	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/devices"
	"github.com/avetan/studio/internal/domain"
	"github.com/avetan/studio/internal/record"
	"github.com/avetan/studio/internal/roomapi"
	"github.com/avetan/studio/internal/session"
	"github.com/avetan/studio/internal/signal"
	"github.com/avetan/studio/internal/vad"
)

// SourceResolver maps a participant to a recordable media source. Remote
// sources come from the media-relay collaborator; the default resolver
// only knows the local capture.
type SourceResolver interface {
	ResolveSource(id domain.ParticipantID) (core.MediaSource, bool)
}

// Agent owns the lifecycle of one room membership.
type Agent struct {
	Cfg         *config.Config
	Machine     *session.Machine
	Coordinator *record.Coordinator
	Devices     *devices.Registry
	API         *roomapi.Client
	Resolver    SourceResolver

	// mu serializes the command entry points (JoinRoom, SetTrackEnabled,
	// SwapDevice, Leave); the control surface calls them from concurrent
	// handlers.
	mu         sync.Mutex
	channel    *signal.Channel
	token      string
	roomID     domain.RoomID
	cancelRoom context.CancelFunc
	cancelVAD  context.CancelFunc
}

func NewAgent(cfg *config.Config, m *session.Machine, c *record.Coordinator, d *devices.Registry, api *roomapi.Client) *Agent {
	a := &Agent{Cfg: cfg, Machine: m, Coordinator: c, Devices: d, API: api}
	m.OnParticipantRemoved(a.onParticipantLeft)
	return a
}

// JoinRoom creates or joins the configured room, opens the signaling
// channel and brings up the local audio capture.
func (a *Agent) JoinRoom(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	meta := domain.Room{}
	isHost := a.Cfg.RoomID == ""
	if isHost {
		resp, err := a.API.CreateRoom(ctx, a.Cfg.RoomName, a.Cfg.DisplayName)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		meta.ID, meta.Name, a.token = resp.RoomID, resp.RoomName, resp.Token
	} else {
		resp, err := a.API.JoinRoom(ctx, domain.RoomID(a.Cfg.RoomID), a.Cfg.DisplayName)
		if err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		meta.ID, meta.Name, a.token = resp.RoomID, resp.RoomName, resp.Token
	}
	a.roomID = meta.ID

	if err := a.Machine.BeginJoin(meta, a.Cfg.DisplayName, isHost); err != nil {
		return err
	}

	roomCtx, cancel := context.WithCancel(ctx)
	a.cancelRoom = cancel

	url := fmt.Sprintf("%s?room=%s&token=%s", a.Cfg.SignalURL, meta.ID, a.token)
	a.channel = signal.NewChannel(url, a.Cfg.ReadLimit, a.Machine)
	a.Machine.BindSender(a.channel)

	err := a.channel.Dial(roomCtx)
	a.Machine.CompleteJoin(err)
	if err != nil {
		cancel()
		return err
	}
	log.Info().Str("module", "app").Str("room", string(meta.ID)).Bool("host", isHost).Msg("joined room")

	if err := a.enableLocalTrack(roomCtx, webrtc.RTPCodecTypeAudio); err != nil {
		// Permission or hardware trouble leaves prior track state
		// untouched; the room membership stands.
		log.Warn().Err(err).Str("module", "app").Msg("local audio unavailable")
	}
	return nil
}

// SetTrackEnabled enables or disables the local track of a kind,
// acquiring a capture source on first enable.
func (a *Agent) SetTrackEnabled(ctx context.Context, kind webrtc.RTPCodecType, enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !enabled {
		if kind == webrtc.RTPCodecTypeAudio {
			a.stopVAD()
		}
		return a.Machine.SetLocalTrackEnabled(kind, false)
	}
	if _, ok := a.Machine.LocalSource(kind); !ok {
		if err := a.acquireAndSwap(ctx, kind); err != nil {
			return err
		}
	}
	return a.Machine.SetLocalTrackEnabled(kind, true)
}

// SwapDevice hot-swaps the capture behind the local track of a kind. The
// enabled value survives the swap.
func (a *Agent) SwapDevice(ctx context.Context, kind webrtc.RTPCodecType, deviceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if kind == webrtc.RTPCodecTypeAudio {
		a.stopVAD()
	}
	src, err := a.Devices.Acquire(ctx, kind, deviceID)
	if err != nil {
		return err
	}
	if err := a.Machine.ReplaceLocalTrack(kind, src); err != nil {
		_ = src.Close()
		return err
	}
	if kind == webrtc.RTPCodecTypeAudio {
		a.startVAD(ctx, src)
	}
	return nil
}

func (a *Agent) enableLocalTrack(ctx context.Context, kind webrtc.RTPCodecType) error {
	if err := a.acquireAndSwap(ctx, kind); err != nil {
		return err
	}
	return a.Machine.SetLocalTrackEnabled(kind, true)
}

func (a *Agent) acquireAndSwap(ctx context.Context, kind webrtc.RTPCodecType) error {
	src, err := a.Devices.Acquire(ctx, kind, "")
	if err != nil {
		return err
	}
	if err := a.Machine.ReplaceLocalTrack(kind, src); err != nil {
		_ = src.Close()
		return err
	}
	if kind == webrtc.RTPCodecTypeAudio {
		a.startVAD(ctx, src)
	}
	return nil
}

// startVAD and stopVAD require a.mu held.
func (a *Agent) startVAD(ctx context.Context, src core.MediaSource) {
	a.stopVAD()
	spectral, ok := src.(core.SpectrumSource)
	if !ok {
		log.Debug().Str("module", "app").Msg("audio source has no spectrum, skipping vad")
		return
	}
	vadCtx, cancel := context.WithCancel(ctx)
	a.cancelVAD = cancel
	mon := vad.NewMonitor(spectral, a.Cfg.VADInterval, a.Cfg.VADThreshold, a.Machine)
	go mon.Run(vadCtx)
}

func (a *Agent) stopVAD() {
	if a.cancelVAD != nil {
		a.cancelVAD()
		a.cancelVAD = nil
	}
}

// StartRecording opens recorders for every participant with a resolvable
// source. Host only.
func (a *Agent) StartRecording(ctx context.Context) (domain.RecordingSession, error) {
	snap := a.Machine.Snapshot()
	if snap.Room == nil {
		return domain.RecordingSession{}, domain.ErrInvalidOperation
	}
	var isHost bool
	for _, p := range snap.Room.Participants {
		if p.ID == domain.SelfID {
			isHost = p.IsHost
		}
	}
	if !isHost {
		return domain.RecordingSession{}, fmt.Errorf("%w: only the host starts recording", domain.ErrInvalidOperation)
	}

	var sources []record.ParticipantSource
	for _, id := range a.Machine.ActiveParticipants() {
		src, ok := a.resolveSource(id)
		if !ok {
			log.Warn().Str("module", "app").Str("participant", string(id)).Msg("no resolvable source, excluded from recording")
			continue
		}
		sources = append(sources, record.ParticipantSource{ID: id, Source: src})
	}
	return a.Coordinator.StartSession(ctx, sources)
}

func (a *Agent) StopRecording(ctx context.Context) (record.Summary, error) {
	return a.Coordinator.StopSession(ctx)
}

func (a *Agent) resolveSource(id domain.ParticipantID) (core.MediaSource, bool) {
	if a.Resolver != nil {
		if src, ok := a.Resolver.ResolveSource(id); ok {
			return src, true
		}
	}
	if id == domain.SelfID {
		return a.Machine.LocalSource(webrtc.RTPCodecTypeAudio)
	}
	return nil, false
}

func (a *Agent) onParticipantLeft(id domain.ParticipantID) {
	a.Coordinator.OnParticipantLeft(context.Background(), id)
}

// Leave tears down the membership: stop recording, cancel in-flight
// acquisitions, close the channel, then discard state. Partially recorded
// media is flushed before anything else goes away.
func (a *Agent) Leave(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.Machine.BeginLeave(); err != nil {
		log.Debug().Err(err).Str("module", "app").Msg("leave outside active phase")
	}

	if _, err := a.Coordinator.StopSession(ctx); err != nil && !errors.Is(err, domain.ErrRecordingNotActive) {
		log.Warn().Err(err).Str("module", "app").Msg("stop recording on leave")
	}

	a.stopVAD()
	if a.cancelRoom != nil {
		a.cancelRoom()
		a.cancelRoom = nil
	}

	if a.channel != nil {
		if err := a.channel.SendLeave(); err != nil {
			log.Debug().Err(err).Str("module", "app").Msg("leave notification undelivered")
		}
		a.channel.Close()
	}
	if a.roomID != "" && a.token != "" {
		if err := a.API.Leave(ctx, a.roomID, a.token); err != nil {
			log.Debug().Err(err).Str("module", "app").Msg("room api leave failed")
		}
	}

	a.Machine.FinishLeave()
	log.Info().Str("module", "app").Msg("left room")
}
