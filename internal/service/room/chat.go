package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/room"
)

type SendChatMessageParams struct {
	RoomId   string
	SenderId string
	Body     string
}

type SendChatMessageResponse struct {
	Message ChatMessage
	Conns   []*websocket.Conn
}

// SendChatMessage assigns the per-room sequence number at receipt time,
// so all subscribers observe the same order regardless of client
// clocks.
func (s *service) SendChatMessage(ctx context.Context, params *SendChatMessageParams) (SendChatMessageResponse, error) {
	unlock := s.lockRoom(params.RoomId)
	defer unlock()

	if _, err := s.checkIfMember(ctx, params.RoomId, params.SenderId); err != nil {
		return SendChatMessageResponse{}, err
	}

	message, err := s.appendMessage(ctx, params.RoomId, params.SenderId, params.Body, false)
	if err != nil {
		return SendChatMessageResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SendChatMessageResponse{}, err
	}

	return SendChatMessageResponse{
		Message: message,
		Conns:   conns,
	}, nil
}

type SendTypingParams struct {
	RoomId   string
	SenderId string
}

type SendTypingResponse struct {
	Conns []*websocket.Conn
}

// SendTyping is advisory: no sequence number, no delivery guarantee.
func (s *service) SendTyping(ctx context.Context, params *SendTypingParams) (SendTypingResponse, error) {
	if _, err := s.checkIfMember(ctx, params.RoomId, params.SenderId); err != nil {
		return SendTypingResponse{}, err
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SendTypingResponse{}, err
	}

	return SendTypingResponse{Conns: conns}, nil
}

func (s *service) appendSystemMessage(ctx context.Context, roomId, body string) (ChatMessage, error) {
	return s.appendMessage(ctx, roomId, "", body, true)
}

func (s *service) appendMessage(ctx context.Context, roomId, authorId, body string, isSystem bool) (ChatMessage, error) {
	seq, err := s.roomRepo.IncrementChatSeq(ctx, roomId)
	if err != nil {
		return ChatMessage{}, err
	}

	message := ChatMessage{
		Id:        uuid.NewString(),
		AuthorId:  authorId,
		Body:      body,
		Seq:       seq,
		IsSystem:  isSystem,
		CreatedAt: s.now().UnixMilli(),
	}

	if err := s.roomRepo.AddChatMessage(ctx, &room.AddChatMessageParams{
		RoomId:  roomId,
		Message: room.ChatMessage(message),
	}); err != nil {
		return ChatMessage{}, err
	}

	return message, nil
}
