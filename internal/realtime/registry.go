// internal/realtime/registry.go
package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks which players are reachable right now and which room each
// live connection belongs to. It is an owned, injected service with no global
// state; it is process-local and repopulated by client reconnects after a
// restart.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]registryEntry
	rooms   map[string]map[uuid.UUID]struct{}
}

type registryEntry struct {
	conn   *Conn
	gameID string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]registryEntry),
		rooms:   make(map[string]map[uuid.UUID]struct{}),
	}
}

// Register binds a player to a connection within a room. A previous
// registration for the player is replaced and its connection closed (last
// writer wins on reconnect). The replaced connection, if any, is returned.
func (r *Registry) Register(playerID uuid.UUID, gameID string, conn *Conn) *Conn {
	r.mu.Lock()
	var replaced *Conn
	if old, ok := r.entries[playerID]; ok {
		if old.conn == conn {
			r.mu.Unlock()
			return nil
		}
		replaced = old.conn
		r.removeLocked(playerID, old.gameID)
	}
	r.entries[playerID] = registryEntry{conn: conn, gameID: gameID}
	room, ok := r.rooms[gameID]
	if !ok {
		room = make(map[uuid.UUID]struct{})
		r.rooms[gameID] = room
	}
	room[playerID] = struct{}{}
	r.mu.Unlock()

	if replaced != nil {
		replaced.Close()
	}
	return replaced
}

// Unregister removes the player's registration. When conn is non-nil the
// removal only applies if that exact connection is still the registered one,
// so a stale transport closing late cannot evict a fresh registration.
func (r *Registry) Unregister(playerID uuid.UUID, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[playerID]
	if !ok {
		return false
	}
	if conn != nil && entry.conn != conn {
		return false
	}
	r.removeLocked(playerID, entry.gameID)
	return true
}

// DropConn removes whatever registration owns the connection and closes it.
// Used by the bus to invalidate unresponsive members.
func (r *Registry) DropConn(conn *Conn) bool {
	r.mu.Lock()
	var owner uuid.UUID
	found := false
	for playerID, entry := range r.entries {
		if entry.conn == conn {
			owner = playerID
			found = true
			break
		}
	}
	if found {
		r.removeLocked(owner, r.entries[owner].gameID)
	}
	r.mu.Unlock()

	conn.Close()
	return found
}

// Lookup returns the player's live connection, if any.
func (r *Registry) Lookup(playerID uuid.UUID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[playerID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// IsOnline reports whether the player has a registered connection.
func (r *Registry) IsOnline(playerID uuid.UUID) bool {
	_, ok := r.Lookup(playerID)
	return ok
}

// Members returns a snapshot of the room's live connections. Broadcast
// membership is exactly this snapshot at call time.
func (r *Registry) Members(gameID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[gameID]
	members := make([]*Conn, 0, len(room))
	for playerID := range room {
		if entry, ok := r.entries[playerID]; ok {
			members = append(members, entry.conn)
		}
	}
	return members
}

// MemberIDs returns a snapshot of the player ids present in the room.
func (r *Registry) MemberIDs(gameID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[gameID]
	ids := make([]uuid.UUID, 0, len(room))
	for playerID := range room {
		ids = append(ids, playerID)
	}
	return ids
}

// RoomSize returns the number of live members in a room.
func (r *Registry) RoomSize(gameID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[gameID])
}

// CloseAll closes every registered connection and empties the registry.
// Called on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.entries))
	for _, entry := range r.entries {
		conns = append(conns, entry.conn)
	}
	r.entries = make(map[uuid.UUID]registryEntry)
	r.rooms = make(map[string]map[uuid.UUID]struct{})
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// removeLocked deletes the player from both maps and prunes the room set when
// it empties. Caller holds the write lock.
func (r *Registry) removeLocked(playerID uuid.UUID, gameID string) {
	delete(r.entries, playerID)
	if room, ok := r.rooms[gameID]; ok {
		delete(room, playerID)
		if len(room) == 0 {
			delete(r.rooms, gameID)
		}
	}
}
