// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerStatus tracks a player's relationship to their game. Disconnected
// players keep their row for history but stop counting toward capacity,
// name uniqueness, and readiness.
type PlayerStatus string

const (
	StatusActive       PlayerStatus = "active"
	StatusObserver     PlayerStatus = "observer"
	StatusDisconnected PlayerStatus = "disconnected"
)

// Player is a row in the players table. SocketID pairs the row with the live
// connection currently allowed to act as this player; it is cleared on
// disconnect.
type Player struct {
	ID      uuid.UUID    `json:"id"`
	GameID  string       `json:"game_id"`
	Name    string       `json:"name"`
	Status  PlayerStatus `json:"status"`
	IsHost  bool         `json:"is_host"`
	IsReady bool         `json:"is_ready"`

	Country     *string `json:"country,omitempty"`
	CountryFlag *string `json:"country_flag,omitempty"`
	CountryCode *string `json:"country_code,omitempty"`

	AttackTroops  int `json:"attack_troops"`
	DefenseTroops int `json:"defense_troops"`

	SocketID *string `json:"-"`
	PingMS   *int    `json:"ping_ms,omitempty"`

	JoinedAt     time.Time `json:"joined_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Seated reports whether the player counts toward capacity and name
// uniqueness.
func (p *Player) Seated() bool {
	return p.Status != StatusDisconnected
}
