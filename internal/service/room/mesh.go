package room

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/mesh"
)

type SignalParams struct {
	RoomId   string
	SenderId string
	TargetId string
	Kind     SignalKind
	Payload  json.RawMessage
}

type SignalResponse struct {
	TargetConn *websocket.Conn
	Signal     Signal
}

// RelaySignal forwards an opaque connection-setup payload between two
// participants of the same room and tracks the link's handshake state.
// The payload is never inspected or stored.
func (s *service) RelaySignal(ctx context.Context, params *SignalParams) (SignalResponse, error) {
	unlock := s.lockRoom(params.RoomId)

	_, err := s.checkIfMember(ctx, params.RoomId, params.SenderId)
	if err != nil {
		unlock()
		return SignalResponse{}, err
	}

	if _, err := s.checkIfMember(ctx, params.RoomId, params.TargetId); err != nil {
		unlock()
		// an unknown relay target is NotFound, not an authority failure
		if err == ErrPermissionDenied {
			return SignalResponse{}, ErrMemberNotFound
		}

		return SignalResponse{}, err
	}

	switch params.Kind {
	case SignalOffer:
		s.meshRepo.SetIntent(&mesh.Intent{
			RoomId:   params.RoomId,
			FromId:   params.SenderId,
			ToId:     params.TargetId,
			State:    mesh.StateOffered,
			OpenedAt: s.now().UnixMilli(),
		})
	case SignalAnswer:
		s.meshRepo.SetIntent(&mesh.Intent{
			RoomId: params.RoomId,
			FromId: params.SenderId,
			ToId:   params.TargetId,
			State:  mesh.StateAnswered,
		})
	case SignalEstablished:
		s.meshRepo.SetIntent(&mesh.Intent{
			RoomId: params.RoomId,
			FromId: params.SenderId,
			ToId:   params.TargetId,
			State:  mesh.StateEstablished,
		})
	case SignalClose:
		s.meshRepo.RemoveIntent(params.RoomId, params.SenderId, params.TargetId)
	case SignalCandidate:
		// candidates ride on an existing intent
	default:
		unlock()
		return SignalResponse{}, fmt.Errorf("unknown signal kind %q", params.Kind)
	}

	unlock()

	targetConn, err := s.connRepo.GetConn(params.TargetId)
	if err != nil {
		return SignalResponse{}, ErrMemberNotFound
	}

	return SignalResponse{
		TargetConn: targetConn,
		Signal: Signal{
			Kind:    params.Kind,
			FromId:  params.SenderId,
			ToId:    params.TargetId,
			Payload: params.Payload,
		},
	}, nil
}

type ClosedLink struct {
	Intent   MeshIntent
	PeerId   string
	PeerConn *websocket.Conn
}

// closeLinksOf tears down every link intent involving the member and
// resolves the surviving peer's connection so it can be notified.
// Callers hold the room lock.
func (s *service) closeLinksOf(roomId, memberId string) []ClosedLink {
	intents := s.meshRepo.RemoveByMember(roomId, memberId)

	closedLinks := make([]ClosedLink, 0, len(intents))
	for _, intent := range intents {
		peerId := intent.FromId
		if peerId == memberId {
			peerId = intent.ToId
		}

		peerConn, err := s.connRepo.GetConn(peerId)
		if err != nil {
			peerConn = nil
		}

		closedLinks = append(closedLinks, ClosedLink{
			Intent:   MeshIntent(intent),
			PeerId:   peerId,
			PeerConn: peerConn,
		})
	}

	return closedLinks
}
