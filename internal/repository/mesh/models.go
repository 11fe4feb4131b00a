package mesh

import "errors"

var ErrIntentNotFound = errors.New("mesh intent not found")

const (
	StateOffered     = "offered"
	StateAnswered    = "answered"
	StateEstablished = "established"
	StateClosed      = "closed"
)

// Intent is a tracked connection handshake between two participants of
// the same room. The signaling payloads themselves are never stored.
type Intent struct {
	RoomId   string `json:"room_id"`
	FromId   string `json:"from_id"`
	ToId     string `json:"to_id"`
	State    string `json:"state"`
	OpenedAt int64  `json:"opened_at"`
}
