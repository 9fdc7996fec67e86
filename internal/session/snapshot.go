package session

import (
	"github.com/avetan/studio/internal/core"
	"github.com/avetan/studio/internal/domain"
)

// RoomView is a read-only copy for API consumers (no transport fields).
type RoomView struct {
	ID           domain.RoomID        `json:"id"`
	Name         domain.RoomName      `json:"name"`
	HostID       domain.ParticipantID `json:"host_id"`
	Participants []domain.Participant `json:"participants"`
}

// Snapshot is the externally observable machine state.
type Snapshot struct {
	Phase   string          `json:"phase"`
	Conn    core.ConnState  `json:"connection"`
	Room    *RoomView       `json:"room,omitempty"`
	Devices core.DeviceList `json:"devices"`
}

// Snapshot copies current state for observers. Participants and their
// tracks are copied so readers never alias fold-owned memory.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Phase:   m.phase.String(),
		Conn:    m.conn,
		Devices: m.devices,
	}
	if m.room == nil {
		return snap
	}
	meta := m.room.Meta()
	view := &RoomView{
		ID:           meta.ID,
		Name:         meta.Name,
		HostID:       meta.HostID,
		Participants: make([]domain.Participant, 0, m.room.Len()),
	}
	for _, p := range m.room.Participants() {
		cp := *p
		cp.Tracks = make(map[domain.TrackName]*domain.Track, len(p.Tracks))
		for name, t := range p.Tracks {
			tc := *t
			cp.Tracks[name] = &tc
		}
		view.Participants = append(view.Participants, cp)
	}
	snap.Room = view
	return snap
}

// ActiveParticipants lists participants in join order with the sources the
// recording coordinator can resolve. Only used while the room exists.
func (m *Machine) ActiveParticipants() []domain.ParticipantID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil {
		return nil
	}
	out := make([]domain.ParticipantID, 0, m.room.Len())
	for _, p := range m.room.Participants() {
		out = append(out, p.ID)
	}
	return out
}
