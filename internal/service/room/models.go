package room

import "encoding/json"

const (
	RoleOwner  = "owner"
	RoleViewer = "viewer"
)

type Member struct {
	Id         string `json:"id"`
	Username   string `json:"username"`
	AvatarUrl  string `json:"avatar_url"`
	Role       string `json:"role"`
	IsMuted    bool   `json:"is_muted"`
	IsCameraOn bool   `json:"is_camera_on"`
	JoinedAt   int64  `json:"joined_at"`
}

type Player struct {
	MediaRef  string  `json:"media_ref"`
	IsPlaying bool    `json:"is_playing"`
	Position  float64 `json:"position"`
	UpdatedAt int64   `json:"updated_at"`
}

type ChatMessage struct {
	Id        string `json:"id"`
	AuthorId  string `json:"author_id"`
	Body      string `json:"body"`
	Seq       int    `json:"seq"`
	IsSystem  bool   `json:"is_system"`
	CreatedAt int64  `json:"created_at"`
}

type MeshIntent struct {
	RoomId   string `json:"room_id"`
	FromId   string `json:"from_id"`
	ToId     string `json:"to_id"`
	State    string `json:"state"`
	OpenedAt int64  `json:"opened_at"`
}

type SignalKind string

const (
	SignalOffer       SignalKind = "offer"
	SignalAnswer      SignalKind = "answer"
	SignalCandidate   SignalKind = "candidate"
	SignalEstablished SignalKind = "established"
	SignalClose       SignalKind = "close"
)

type Signal struct {
	Kind    SignalKind      `json:"kind"`
	FromId  string          `json:"from_id"`
	ToId    string          `json:"to_id"`
	Payload json.RawMessage `json:"payload"`
}

type Room struct {
	RoomId     string        `json:"room_id"`
	HostId     string        `json:"host_id"`
	Player     Player        `json:"player"`
	Memberlist []Member      `json:"memberlist"`
	Messages   []ChatMessage `json:"messages"`
}
