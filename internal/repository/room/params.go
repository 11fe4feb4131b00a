package room

type SetRoomParams struct {
	RoomId    string
	HostId    string
	CreatedAt int64
}

type SetMemberParams struct {
	MemberId   string
	RoomId     string
	Username   string
	AvatarUrl  string
	IsOwner    bool
	IsMuted    bool
	IsCameraOn bool
	JoinedAt   int64
}

type RemoveMemberParams struct {
	MemberId string
	RoomId   string
}

type GetMemberParams struct {
	MemberId string
	RoomId   string
}

type BanMemberParams struct {
	MemberId string
	RoomId   string
}

type UpdateMemberIsMutedParams struct {
	MemberId string
	RoomId   string
	IsMuted  bool
}

type UpdateMemberIsCameraOnParams struct {
	MemberId   string
	RoomId     string
	IsCameraOn bool
}

type SetPlayerParams struct {
	RoomId    string
	MediaRef  string
	IsPlaying bool
	Position  float64
	UpdatedAt int64
}

type UpdatePlayerStateParams struct {
	RoomId    string
	IsPlaying bool
	Position  float64
	UpdatedAt int64
}

type UpdatePlayerMediaParams struct {
	RoomId    string
	MediaRef  string
	UpdatedAt int64
}

type AddChatMessageParams struct {
	RoomId  string
	Message ChatMessage
}

type SetCreateRoomSessionParams struct {
	Token           string
	UserId          string
	Username        string
	AvatarUrl       string
	InitialMediaRef string
}

type SetJoinRoomSessionParams struct {
	Token     string
	UserId    string
	Username  string
	AvatarUrl string
	RoomId    string
}
