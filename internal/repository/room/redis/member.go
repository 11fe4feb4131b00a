package redis

import (
	"context"
	"fmt"

	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getMemberKey(roomId, memberId string) string {
	return "room:" + roomId + ":member:" + memberId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) getBannedKey(roomId string) string {
	return "room:" + roomId + ":banned"
}

func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	pipe.HSet(ctx, memberKey, room.Member{
		Username:   params.Username,
		AvatarUrl:  params.AvatarUrl,
		IsOwner:    params.IsOwner,
		IsMuted:    params.IsMuted,
		IsCameraOn: params.IsCameraOn,
		JoinedAt:   params.JoinedAt,
	})
	pipe.Expire(ctx, memberKey, r.expireDuration)
	if err := r.addWithIncrement(ctx, pipe, r.getMemberListKey(params.RoomId), params.MemberId); err != nil {
		return fmt.Errorf("failed to add member to list: %w", err)
	}
	pipe.Expire(ctx, r.getMemberListKey(params.RoomId), r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set member: %w", err)
	}

	return nil
}

func (r repo) GetMember(ctx context.Context, params *room.GetMemberParams) (room.Member, error) {
	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	cmd := r.rc.Exists(ctx, memberKey)
	if err := cmd.Err(); err != nil {
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	if cmd.Val() == 0 {
		return room.Member{}, room.ErrMemberNotFound
	}

	var member room.Member
	if err := r.rc.HGetAll(ctx, memberKey).Scan(&member); err != nil {
		return room.Member{}, fmt.Errorf("failed to scan member: %w", err)
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return member, nil
}

func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	memberListKey := r.getMemberListKey(roomId)
	memberIds, err := r.rc.ZRange(ctx, memberListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	r.rc.Expire(ctx, memberListKey, r.expireDuration)

	return memberIds, nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	res, err := r.rc.ZRem(ctx, r.getMemberListKey(params.RoomId), params.MemberId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove member from list: %w", err)
	}
	if res == 0 {
		return room.ErrMemberNotFound
	}

	if err := r.rc.Del(ctx, r.getMemberKey(params.RoomId, params.MemberId)).Err(); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (r repo) BanMember(ctx context.Context, params *room.BanMemberParams) error {
	bannedKey := r.getBannedKey(params.RoomId)
	if err := r.rc.SAdd(ctx, bannedKey, params.MemberId).Err(); err != nil {
		return fmt.Errorf("failed to ban member: %w", err)
	}

	r.rc.Expire(ctx, bannedKey, r.expireDuration)

	return nil
}

func (r repo) IsMemberBanned(ctx context.Context, params *room.BanMemberParams) (bool, error) {
	banned, err := r.rc.SIsMember(ctx, r.getBannedKey(params.RoomId), params.MemberId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if member is banned: %w", err)
	}

	return banned, nil
}

func (r repo) UpdateMemberIsMuted(ctx context.Context, params *room.UpdateMemberIsMutedParams) error {
	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	cmd := r.rc.Exists(ctx, memberKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrMemberNotFound
	}

	if err := r.rc.HSet(ctx, memberKey, "is_muted", params.IsMuted).Err(); err != nil {
		return fmt.Errorf("failed to update member is_muted: %w", err)
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return nil
}

func (r repo) UpdateMemberIsCameraOn(ctx context.Context, params *room.UpdateMemberIsCameraOnParams) error {
	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	cmd := r.rc.Exists(ctx, memberKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrMemberNotFound
	}

	if err := r.rc.HSet(ctx, memberKey, "is_camera_on", params.IsCameraOn).Err(); err != nil {
		return fmt.Errorf("failed to update member is_camera_on: %w", err)
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return nil
}
