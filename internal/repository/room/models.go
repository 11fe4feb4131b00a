package room

type Room struct {
	HostId    string `redis:"host_id"`
	CreatedAt int64  `redis:"created_at"`
}

type Member struct {
	Username   string `redis:"username"`
	AvatarUrl  string `redis:"avatar_url"`
	IsOwner    bool   `redis:"is_owner"`
	IsMuted    bool   `redis:"is_muted"`
	IsCameraOn bool   `redis:"is_camera_on"`
	JoinedAt   int64  `redis:"joined_at"`
}

type Player struct {
	MediaRef  string  `redis:"media_ref"`
	IsPlaying bool    `redis:"is_playing"`
	Position  float64 `redis:"position"`
	UpdatedAt int64   `redis:"updated_at"`
}

type ChatMessage struct {
	Id        string `json:"id"`
	AuthorId  string `json:"author_id"`
	Body      string `json:"body"`
	Seq       int    `json:"seq"`
	IsSystem  bool   `json:"is_system"`
	CreatedAt int64  `json:"created_at"`
}

type CreateRoomSession struct {
	UserId          string `redis:"user_id"`
	Username        string `redis:"username"`
	AvatarUrl       string `redis:"avatar_url"`
	InitialMediaRef string `redis:"initial_media_ref"`
}

type JoinRoomSession struct {
	UserId    string `redis:"user_id"`
	Username  string `redis:"username"`
	AvatarUrl string `redis:"avatar_url"`
	RoomId    string `redis:"room_id"`
}
