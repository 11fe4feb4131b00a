package presence

import "errors"

var ErrPresenceNotFound = errors.New("presence not found")

const (
	StatusOffline  = "offline"
	StatusOnline   = "online"
	StatusWatching = "watching"
	StatusInRoom   = "in_room"
)

type Record struct {
	UserId    string `redis:"user_id"`
	Status    string `redis:"status"`
	RoomId    string `redis:"room_id"`
	UpdatedAt int64  `redis:"updated_at"`
}

type SetRecordParams struct {
	UserId    string
	Status    string
	RoomId    string
	UpdatedAt int64
}
