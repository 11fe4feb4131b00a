package room

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	connectioninmemory "github.com/watchroom/server/internal/repository/connection/inmemory"
	meshinmemory "github.com/watchroom/server/internal/repository/mesh/inmemory"
	roomredis "github.com/watchroom/server/internal/repository/room/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	roomRepo := roomredis.NewRepo(rc, &roomredis.Config{
		ExpireDuration:  time.Hour,
		SessionDuration: time.Minute,
		ChatLimit:       200,
	})
	connRepo := connectioninmemory.NewRepo()
	meshRepo := meshinmemory.NewRepo()

	return NewService(roomRepo, connRepo, meshRepo, &Config{
		Secret:       "test-secret",
		MembersLimit: 3,
		RoomExp:      30 * time.Second,
	})
}

func mustCreateRoom(t *testing.T, ctx context.Context, svc *service, userId string) CreateRoomResponse {
	t.Helper()

	connectToken, err := svc.CreateRoomSession(ctx, &CreateRoomSessionParams{
		UserId:          userId,
		Username:        "host",
		AvatarUrl:       "some-avatar",
		InitialMediaRef: "media-1",
	})
	require.NoError(t, err)

	resp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         &websocket.Conn{},
	})
	require.NoError(t, err)

	return resp
}

func mustJoinRoom(t *testing.T, ctx context.Context, svc *service, roomId, userId, username string) JoinRoomResponse {
	t.Helper()

	connectToken, err := svc.JoinRoomSession(ctx, &JoinRoomSessionParams{
		UserId:   userId,
		Username: username,
		RoomId:   roomId,
	})
	require.NoError(t, err)

	resp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		ConnectToken: connectToken,
		RoomId:       roomId,
		Conn:         &websocket.Conn{},
	})
	require.NoError(t, err)

	return resp
}

func TestCreateAndJoinRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	assert.NotEmpty(t, createResp.RoomId, "room id is empty")
	assert.NotEmpty(t, createResp.AuthToken, "auth token is empty")
	assert.Equal(t, "user-host", createResp.MemberId)
	assert.Equal(t, "user-host", createResp.Room.HostId)
	assert.Equal(t, "media-1", createResp.Room.Player.MediaRef)
	assert.False(t, createResp.Room.Player.IsPlaying, "room must start paused")
	assert.Zero(t, createResp.Room.Player.Position, "room must start at position 0")
	require.Len(t, createResp.Room.Memberlist, 1)
	assert.Equal(t, RoleOwner, createResp.Room.Memberlist[0].Role)

	joinResp := mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")
	assert.Equal(t, "user-2", joinResp.JoinedMember.Id)
	assert.Equal(t, RoleViewer, joinResp.JoinedMember.Role)
	assert.True(t, joinResp.JoinedMember.IsMuted, "members join muted")
	assert.False(t, joinResp.JoinedMember.IsCameraOn)
	assert.Len(t, joinResp.Room.Memberlist, 2)
	assert.Len(t, joinResp.Conns, 2, "both members must be notified")
	assert.NotEmpty(t, joinResp.AuthToken)

	// same user joining again is a conflict, not a second seat
	connectToken, err := svc.JoinRoomSession(ctx, &JoinRoomSessionParams{
		UserId:   "user-2",
		Username: "viewer",
		RoomId:   createResp.RoomId,
	})
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		ConnectToken: connectToken,
		RoomId:       createResp.RoomId,
		Conn:         &websocket.Conn{},
	})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestConnectTokenIsSingleUse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connectToken, err := svc.CreateRoomSession(ctx, &CreateRoomSessionParams{
		UserId:          "user-host",
		Username:        "host",
		InitialMediaRef: "media-1",
	})
	require.NoError(t, err)

	_, err = svc.CreateRoom(ctx, &CreateRoomParams{ConnectToken: connectToken, Conn: &websocket.Conn{}})
	require.NoError(t, err)

	_, err = svc.CreateRoom(ctx, &CreateRoomParams{ConnectToken: connectToken, Conn: &websocket.Conn{}})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinRoomMembersLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer2")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-3", "viewer3")

	connectToken, err := svc.JoinRoomSession(ctx, &JoinRoomSessionParams{
		UserId:   "user-4",
		Username: "viewer4",
		RoomId:   createResp.RoomId,
	})
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, &JoinRoomParams{
		ConnectToken: connectToken,
		RoomId:       createResp.RoomId,
		Conn:         &websocket.Conn{},
	})
	assert.ErrorIs(t, err, ErrRoomUnavailable)
}

func TestPlaybackAuthority(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	// a viewer has no playback authority
	_, err := svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomId:    createResp.RoomId,
		SenderId:  "user-2",
		IsPlaying: true,
		Position:  10,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	snapshot, err := svc.GetRoomSnapshot(ctx, createResp.RoomId)
	require.NoError(t, err)
	assert.False(t, snapshot.Player.IsPlaying, "denied update must not mutate state")
	assert.Zero(t, snapshot.Player.Position)

	updateResp, err := svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomId:    createResp.RoomId,
		SenderId:  "user-host",
		IsPlaying: true,
		Position:  42.5,
	})
	require.NoError(t, err)
	assert.True(t, updateResp.Player.IsPlaying)
	assert.Equal(t, 42.5, updateResp.Player.Position)
	assert.NotZero(t, updateResp.Player.UpdatedAt, "timestamp must be stamped server-side")
	assert.Len(t, updateResp.Conns, 2)

	// a non-member has no authority either
	_, err = svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomId:    createResp.RoomId,
		SenderId:  "user-stranger",
		IsPlaying: false,
		Position:  0,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUpdateMediaResetsPlayback(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	_, err := svc.UpdatePlayback(ctx, &UpdatePlaybackParams{
		RoomId:    createResp.RoomId,
		SenderId:  "user-host",
		IsPlaying: true,
		Position:  120,
	})
	require.NoError(t, err)

	_, err = svc.UpdateMedia(ctx, &UpdateMediaParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-2",
		MediaRef: "media-2",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	mediaResp, err := svc.UpdateMedia(ctx, &UpdateMediaParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		MediaRef: "media-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "media-2", mediaResp.Player.MediaRef)
	assert.False(t, mediaResp.Player.IsPlaying, "media switch must pause playback")
	assert.Zero(t, mediaResp.Player.Position, "media switch must reset position")
}

func TestKickMember(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	_, err := svc.KickMember(ctx, &KickMemberParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-2",
		TargetId: "user-host",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "viewers cannot kick")

	_, err = svc.KickMember(ctx, &KickMemberParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-host",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "owner cannot kick themselves")

	_, err = svc.KickMember(ctx, &KickMemberParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-unknown",
	})
	assert.ErrorIs(t, err, ErrMemberNotFound)

	kickResp, err := svc.KickMember(ctx, &KickMemberParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-2",
	})
	require.NoError(t, err)
	assert.Len(t, kickResp.Memberlist, 1)
	assert.True(t, kickResp.SystemMessage.IsSystem)
	assert.Contains(t, kickResp.SystemMessage.Body, "viewer")

	// kicked user is banned for the lifetime of the room
	_, err = svc.JoinRoomSession(ctx, &JoinRoomSessionParams{
		UserId:   "user-2",
		Username: "viewer",
		RoomId:   createResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDeleteRoom(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	_, err := svc.DeleteRoom(ctx, &DeleteRoomParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-2",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "only the host can delete the room")

	deleteResp, err := svc.DeleteRoom(ctx, &DeleteRoomParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
	})
	require.NoError(t, err)
	assert.Len(t, deleteResp.Conns, 2)

	_, err = svc.GetRoomSnapshot(ctx, createResp.RoomId)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.JoinRoomSession(ctx, &JoinRoomSessionParams{
		UserId:   "user-3",
		Username: "late",
		RoomId:   createResp.RoomId,
	})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestChatSequence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	first, err := svc.SendChatMessage(ctx, &SendChatMessageParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		Body:     "hello",
	})
	require.NoError(t, err)
	second, err := svc.SendChatMessage(ctx, &SendChatMessageParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-2",
		Body:     "hi",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Message.Seq)
	assert.Equal(t, 2, second.Message.Seq)
	assert.NotEmpty(t, first.Message.Id)

	// a kick's system message takes the next sequence number
	kickResp, err := svc.KickMember(ctx, &KickMemberParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-2",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, kickResp.SystemMessage.Seq)

	snapshot, err := svc.GetRoomSnapshot(ctx, createResp.RoomId)
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 3)
	assert.Equal(t, "hello", snapshot.Messages[0].Body)
	assert.Equal(t, "hi", snapshot.Messages[1].Body)
	assert.True(t, snapshot.Messages[2].IsSystem)

	_, err = svc.SendChatMessage(ctx, &SendChatMessageParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-stranger",
		Body:     "let me in",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestOwnerDisconnectDoesNotPromote(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	disconnectResp, err := svc.DisconnectMember(ctx, &DisconnectMemberParams{
		RoomId:   createResp.RoomId,
		MemberId: "user-host",
	})
	require.NoError(t, err)
	assert.False(t, disconnectResp.IsRoomEmptied)
	require.Len(t, disconnectResp.Memberlist, 1)
	assert.Equal(t, RoleViewer, disconnectResp.Memberlist[0].Role, "remaining viewer must not be promoted")

	snapshot, err := svc.GetRoomSnapshot(ctx, createResp.RoomId)
	require.NoError(t, err)
	assert.Equal(t, "user-host", snapshot.HostId, "host id survives the owner leaving")

	lastResp, err := svc.DisconnectMember(ctx, &DisconnectMemberParams{
		RoomId:   createResp.RoomId,
		MemberId: "user-2",
	})
	require.NoError(t, err)
	assert.True(t, lastResp.IsRoomEmptied, "last member leaving empties the room")
}

func TestReconnectMember(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")

	reconnectResp, err := svc.ReconnectMember(ctx, &ReconnectMemberParams{
		AuthToken: createResp.AuthToken,
		Conn:      &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.Equal(t, createResp.RoomId, reconnectResp.RoomId)
	assert.Equal(t, "user-host", reconnectResp.MemberId)
	assert.Len(t, reconnectResp.Room.Memberlist, 1)

	_, err = svc.ReconnectMember(ctx, &ReconnectMemberParams{
		AuthToken: "not-a-token",
		Conn:      &websocket.Conn{},
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestReconnectSurvivesStaleDisconnect(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	connectToken, err := svc.CreateRoomSession(ctx, &CreateRoomSessionParams{
		UserId:          "user-host",
		Username:        "host",
		InitialMediaRef: "media-1",
	})
	require.NoError(t, err)

	conn1 := &websocket.Conn{}
	createResp, err := svc.CreateRoom(ctx, &CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         conn1,
	})
	require.NoError(t, err)
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	conn2 := &websocket.Conn{}
	_, err = svc.ReconnectMember(ctx, &ReconnectMemberParams{
		AuthToken: createResp.AuthToken,
		Conn:      conn2,
	})
	require.NoError(t, err)

	// the first connection's read loop exits after the member has
	// already re-attached; its teardown must not evict the member
	staleResp, err := svc.DisconnectMember(ctx, &DisconnectMemberParams{
		RoomId:   createResp.RoomId,
		MemberId: "user-host",
		Conn:     conn1,
	})
	require.NoError(t, err)
	assert.True(t, staleResp.IsStaleConn)

	snapshot, err := svc.GetRoomSnapshot(ctx, createResp.RoomId)
	require.NoError(t, err)
	require.Len(t, snapshot.Memberlist, 2, "host must keep their seat after a stale disconnect")

	disconnectResp, err := svc.DisconnectMember(ctx, &DisconnectMemberParams{
		RoomId:   createResp.RoomId,
		MemberId: "user-host",
		Conn:     conn2,
	})
	require.NoError(t, err)
	assert.False(t, disconnectResp.IsStaleConn)
	assert.Len(t, disconnectResp.Memberlist, 1, "active connection teardown removes the member")
}

func TestRelaySignal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	signalResp, err := svc.RelaySignal(ctx, &SignalParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-2",
		Kind:     SignalOffer,
		Payload:  []byte(`{"sdp":"v=0"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, signalResp.TargetConn)
	assert.Equal(t, "user-host", signalResp.Signal.FromId)
	assert.Equal(t, "user-2", signalResp.Signal.ToId)
	assert.Equal(t, SignalOffer, signalResp.Signal.Kind)

	_, err = svc.RelaySignal(ctx, &SignalParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-stranger",
		Kind:     SignalOffer,
	})
	assert.ErrorIs(t, err, ErrMemberNotFound, "target must be a member of the same room")

	_, err = svc.RelaySignal(ctx, &SignalParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-stranger",
		TargetId: "user-2",
		Kind:     SignalOffer,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDisconnectTearsDownMeshLinks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	_, err := svc.RelaySignal(ctx, &SignalParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-2",
		Kind:     SignalOffer,
	})
	require.NoError(t, err)

	disconnectResp, err := svc.DisconnectMember(ctx, &DisconnectMemberParams{
		RoomId:   createResp.RoomId,
		MemberId: "user-2",
	})
	require.NoError(t, err)
	require.Len(t, disconnectResp.ClosedLinks, 1, "the open link must be torn down")
	assert.Equal(t, "user-host", disconnectResp.ClosedLinks[0].PeerId)
	require.NotNil(t, disconnectResp.ClosedLinks[0].PeerConn)
}

func TestExplicitCloseRemovesMeshLink(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	_, err := svc.RelaySignal(ctx, &SignalParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-2",
		Kind:     SignalOffer,
	})
	require.NoError(t, err)

	_, err = svc.RelaySignal(ctx, &SignalParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-host",
		TargetId: "user-2",
		Kind:     SignalClose,
	})
	require.NoError(t, err)

	disconnectResp, err := svc.DisconnectMember(ctx, &DisconnectMemberParams{
		RoomId:   createResp.RoomId,
		MemberId: "user-2",
	})
	require.NoError(t, err)
	assert.Empty(t, disconnectResp.ClosedLinks, "a closed link must not be torn down twice")
}

func TestKeepAlive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")

	require.NoError(t, svc.KeepAlive(ctx, createResp.RoomId))
	assert.ErrorIs(t, svc.KeepAlive(ctx, "room-missing"), ErrRoomNotFound)
}

func TestToggleMemberFlags(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	createResp := mustCreateRoom(t, ctx, svc, "user-host")
	mustJoinRoom(t, ctx, svc, createResp.RoomId, "user-2", "viewer")

	mutedResp, err := svc.UpdateMemberIsMuted(ctx, &UpdateMemberIsMutedParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-2",
		IsMuted:  false,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-2", mutedResp.UpdatedMember.Id)
	assert.False(t, mutedResp.UpdatedMember.IsMuted)
	assert.Len(t, mutedResp.Conns, 2)

	cameraResp, err := svc.UpdateMemberIsCameraOn(ctx, &UpdateMemberIsCameraOnParams{
		RoomId:     createResp.RoomId,
		SenderId:   "user-2",
		IsCameraOn: true,
	})
	require.NoError(t, err)
	assert.True(t, cameraResp.UpdatedMember.IsCameraOn)

	_, err = svc.UpdateMemberIsMuted(ctx, &UpdateMemberIsMutedParams{
		RoomId:   createResp.RoomId,
		SenderId: "user-stranger",
		IsMuted:  false,
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
