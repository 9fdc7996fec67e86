// Package session owns the Room/Participant/Track state machine. All
// mutation happens through Room operations or the Machine's single
// consumer loop, which is what keeps folds deterministic.
package session

import (
	"github.com/rs/zerolog/log"

	"github.com/avetan/studio/internal/domain"
)

// Room is the membership aggregate for one recording session. Insertion
// order is join order and drives deterministic iteration. It never touches
// transport resources.
type Room struct {
	meta         domain.Room
	order        []domain.ParticipantID
	participants map[domain.ParticipantID]*domain.Participant
	bySession    map[domain.SessionID]domain.ParticipantID
}

// NewRoom builds the aggregate with the local participant already joined.
func NewRoom(meta domain.Room, self *domain.Participant) *Room {
	r := &Room{
		meta:         meta,
		participants: make(map[domain.ParticipantID]*domain.Participant),
		bySession:    make(map[domain.SessionID]domain.ParticipantID),
	}
	r.AddParticipant(self)
	return r
}

func (r *Room) Meta() domain.Room { return r.meta }

func (r *Room) Len() int { return len(r.participants) }

func (r *Room) Participant(id domain.ParticipantID) (*domain.Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

func (r *Room) Self() *domain.Participant {
	p := r.participants[domain.SelfID]
	return p
}

// BySession resolves a transport session id to its participant. The mapping
// is pruned on removal, never left dangling.
func (r *Room) BySession(sid domain.SessionID) (*domain.Participant, bool) {
	id, ok := r.bySession[sid]
	if !ok {
		return nil, false
	}
	return r.Participant(id)
}

// AddParticipant registers p unless its id is already present. Duplicate
// snapshots racing a live announce make this a no-op, not an error.
// First write wins, including metadata.
func (r *Room) AddParticipant(p *domain.Participant) bool {
	if _, ok := r.participants[p.ID]; ok {
		return false
	}
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	if p.SessionID != "" {
		r.bySession[p.SessionID] = p.ID
	}
	log.Debug().Str("module", "session.room").Str("participant", string(p.ID)).Msg("participant added")
	return true
}

// RemoveParticipant drops id and returns the tracks it owned so the caller
// can invalidate them. Removing "self" is a caller error; removing an
// unknown id is a no-op.
func (r *Room) RemoveParticipant(id domain.ParticipantID) ([]*domain.Track, error) {
	if id == domain.SelfID {
		return nil, domain.ErrRemoveSelf
	}
	p, ok := r.participants[id]
	if !ok {
		return nil, nil
	}
	delete(r.participants, id)
	if p.SessionID != "" {
		delete(r.bySession, p.SessionID)
	}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	tracks := make([]*domain.Track, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		tracks = append(tracks, t)
	}
	log.Debug().Str("module", "session.room").Str("participant", string(id)).Msg("participant removed")
	return tracks, nil
}

// Participants returns members in join order.
func (r *Room) Participants() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id])
	}
	return out
}
