package domain

import "regexp"

type (
	RoomName string
	RoomID   string
)

// Room identity as issued by the signaling backend. Membership is owned
// by the session package, not here.
type Room struct {
	ID     RoomID        `json:"id"`
	Name   RoomName      `json:"name"`
	HostID ParticipantID `json:"host_id"`
}

var roomIDPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ValidRoomID reports whether id has the backend's 6-character
// uppercase-alphanumeric shape.
func ValidRoomID(id RoomID) bool {
	return roomIDPattern.MatchString(string(id))
}
