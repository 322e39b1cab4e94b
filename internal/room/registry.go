// internal/room/registry.go
package room

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateID means a room with the same unique id is already active.
	ErrDuplicateID = errors.New("room: duplicate room id")
	// ErrHostHasRoom means the host already has an active room.
	ErrHostHasRoom = errors.New("room: host already has a room")
	// ErrAlreadyInRoom means the user is already a player somewhere.
	ErrAlreadyInRoom = errors.New("room: user already in a room")
)

// Registry is the shared collection of active rooms: the sole authority for
// the one-room-per-host and one-membership-per-player invariants. Lookups go
// through secondary indices keyed by host and player, so membership checks
// are O(1) rather than a scan of every room.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]Room
	order    []string          // insertion order of room ids
	byHost   map[string]string // host user id -> room id
	byPlayer map[string]string // player user id -> room id
	log      *logrus.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		rooms:    make(map[string]Room),
		byHost:   make(map[string]string),
		byPlayer: make(map[string]string),
		log:      log,
	}
}

// Add registers a room, enforcing id uniqueness and host exclusivity.
func (r *Registry) Add(room Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := room.ID()
	if _, exists := r.rooms[id]; exists {
		return ErrDuplicateID
	}
	hostID := room.Host().ID
	if _, exists := r.byHost[hostID]; exists {
		return ErrHostHasRoom
	}

	r.rooms[id] = room
	r.order = append(r.order, id)
	r.byHost[hostID] = id
	r.log.WithFields(logrus.Fields{"room": id, "host": hostID}).Info("registry: room added")
	return nil
}

// Remove deletes a room and every index entry pointing at it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return
	}
	delete(r.rooms, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.byHost, room.Host().ID)
	for userID, roomID := range r.byPlayer {
		if roomID == id {
			delete(r.byPlayer, userID)
		}
	}
	r.log.WithField("room", id).Info("registry: room removed")
}

// FindByID looks a room up by its unique id.
func (r *Registry) FindByID(id string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// FindByHost returns the room hosted by the given user, if any.
func (r *Registry) FindByHost(hostID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHost[hostID]
	if !ok {
		return nil, false
	}
	room, ok := r.rooms[id]
	return room, ok
}

// FindByPlayer returns the room the given user currently occupies, if any.
func (r *Registry) FindByPlayer(userID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[userID]
	if !ok {
		return nil, false
	}
	room, ok := r.rooms[id]
	return room, ok
}

// All returns every active room in insertion order.
func (r *Registry) All() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]Room, 0, len(r.order))
	for _, id := range r.order {
		if room, ok := r.rooms[id]; ok {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// ClaimPlayer atomically records that a user occupies a room. It fails with
// ErrAlreadyInRoom when the user is claimed anywhere, which makes membership
// exclusivity race-free even with concurrent joins.
func (r *Registry) ClaimPlayer(userID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byPlayer[userID]; taken {
		return ErrAlreadyInRoom
	}
	r.byPlayer[userID] = roomID
	return nil
}

// ReleasePlayer drops a user's membership claim, if any.
func (r *Registry) ReleasePlayer(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPlayer, userID)
}
