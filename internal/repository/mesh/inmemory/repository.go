package inmemory

import (
	"sync"

	"github.com/watchroom/server/internal/repository/mesh"
)

// Intents live in process memory only: a link is meaningless without
// both live websocket connections, and those are process-local too.
type repo struct {
	rooms map[string]map[string]*mesh.Intent
	mu    sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		rooms: make(map[string]map[string]*mesh.Intent),
	}
}

func pairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}

	return b + ":" + a
}

func (r *repo) SetIntent(intent *mesh.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intents, ok := r.rooms[intent.RoomId]
	if !ok {
		intents = make(map[string]*mesh.Intent)
		r.rooms[intent.RoomId] = intents
	}

	key := pairKey(intent.FromId, intent.ToId)
	if existing, ok := intents[key]; ok {
		existing.State = intent.State
		return
	}

	clone := *intent
	intents[key] = &clone
}

func (r *repo) GetIntent(roomId, fromId, toId string) (mesh.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	intent, ok := r.rooms[roomId][pairKey(fromId, toId)]
	if !ok {
		return mesh.Intent{}, mesh.ErrIntentNotFound
	}

	return *intent, nil
}

func (r *repo) RemoveIntent(roomId, fromId, toId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms[roomId], pairKey(fromId, toId))
	if len(r.rooms[roomId]) == 0 {
		delete(r.rooms, roomId)
	}
}

// RemoveByMember closes and removes every intent involving the member,
// returning the closed intents so peers can be notified.
func (r *repo) RemoveByMember(roomId, memberId string) []mesh.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed []mesh.Intent
	for key, intent := range r.rooms[roomId] {
		if intent.FromId == memberId || intent.ToId == memberId {
			intent.State = mesh.StateClosed
			closed = append(closed, *intent)
			delete(r.rooms[roomId], key)
		}
	}

	if len(r.rooms[roomId]) == 0 {
		delete(r.rooms, roomId)
	}

	return closed
}

func (r *repo) RemoveByRoom(roomId string) []mesh.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed []mesh.Intent
	for _, intent := range r.rooms[roomId] {
		intent.State = mesh.StateClosed
		closed = append(closed, *intent)
	}

	delete(r.rooms, roomId)

	return closed
}
