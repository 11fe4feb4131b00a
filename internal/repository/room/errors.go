package room

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrSessionNotFound = errors.New("session not found")
)
