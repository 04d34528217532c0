// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionLease records which socket currently speaks for a player. Leases
// live in the ephemeral key store under player_session:{player_id} with a
// TTL; an expired or missing lease means "not reachable", never an error.
type SessionLease struct {
	PlayerID uuid.UUID `json:"player_id"`
	GameID   string    `json:"game_id"`
	SocketID string    `json:"socket_id"`
}

// Invitation is a short-lived offer from one player to another (alliance,
// negotiation). Invitations share the lease mechanism: 30 seconds in the key
// store, then gone. The flows that would consume them are out of scope, but
// the storage contract is part of the engine.
type Invitation struct {
	GameID       string    `json:"game_id"`
	FromPlayerID uuid.UUID `json:"from_player_id"`
	ToPlayerID   uuid.UUID `json:"to_player_id"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}
