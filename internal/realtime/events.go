// internal/realtime/events.go
package realtime

import (
	"github.com/google/uuid"

	"github.com/avagner/summit/internal/models"
)

// EventType tags every message the server pushes to room members.
type EventType string

const (
	EventRoomState          EventType = "room_state"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventPlayerKicked       EventType = "player_kicked"
	EventNewMessage         EventType = "new_message"
	EventPingUpdated        EventType = "ping_updated"
	EventPlayerReadyChanged EventType = "player_ready_changed"
	EventAllPlayersReady    EventType = "all_players_ready"
	EventGameStarted        EventType = "game_started"
	EventSettingsUpdated    EventType = "settings_updated"
	EventError              EventType = "error"
)

// Event is implemented by every server-to-client message. The set is closed:
// one struct per broadcast kind, each with a fixed field set, so handlers and
// tests can switch over them exhaustively.
type Event interface {
	EventType() EventType
}

// Envelope is the wire form: {"type": "...", "data": {...}}.
type Envelope struct {
	Type EventType `json:"type"`
	Data Event     `json:"data"`
}

// RoomState is sent to a connection right after it joins its room.
type RoomState struct {
	Game         models.GameView     `json:"game"`
	Players      []models.PlayerView `json:"players"`
	YourPlayerID uuid.UUID           `json:"your_player_id"`
	IsHost       bool                `json:"is_host"`
}

func (RoomState) EventType() EventType { return EventRoomState }

// PlayerJoined announces a new member of the game.
type PlayerJoined struct {
	GameID         string            `json:"game_id"`
	Player         models.PlayerView `json:"player"`
	CurrentPlayers int               `json:"current_players"`
}

func (PlayerJoined) EventType() EventType { return EventPlayerJoined }

// PlayerDisconnected announces that a member's connection is gone.
type PlayerDisconnected struct {
	GameID     string    `json:"game_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
}

func (PlayerDisconnected) EventType() EventType { return EventPlayerDisconnected }

// PlayerKicked announces that the host removed a member.
type PlayerKicked struct {
	GameID     string    `json:"game_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
}

func (PlayerKicked) EventType() EventType { return EventPlayerKicked }

// NewMessage carries a chat message, public or private.
type NewMessage struct {
	Message models.ChatMessage `json:"message"`
}

func (NewMessage) EventType() EventType { return EventNewMessage }

// PingUpdated reports a member's latency to the rest of the room.
type PingUpdated struct {
	PlayerID uuid.UUID `json:"player_id"`
	PingMS   int       `json:"ping_ms"`
}

func (PingUpdated) EventType() EventType { return EventPingUpdated }

// PlayerReadyChanged reports a readiness toggle.
type PlayerReadyChanged struct {
	PlayerID uuid.UUID `json:"player_id"`
	IsReady  bool      `json:"is_ready"`
}

func (PlayerReadyChanged) EventType() EventType { return EventPlayerReadyChanged }

// AllPlayersReady is advisory: enough players are seated and every active one
// is ready. It never starts the game by itself.
type AllPlayersReady struct {
	GameID      string `json:"game_id"`
	PlayerCount int    `json:"player_count"`
}

func (AllPlayersReady) EventType() EventType { return EventAllPlayersReady }

// GameStarted carries the started game and the roster with its country
// assignments.
type GameStarted struct {
	Game    models.GameView     `json:"game"`
	Players []models.PlayerView `json:"players"`
}

func (GameStarted) EventType() EventType { return EventGameStarted }

// SettingsUpdated carries the game summary after a host edit.
type SettingsUpdated struct {
	Game models.GameView `json:"game"`
}

func (SettingsUpdated) EventType() EventType { return EventSettingsUpdated }

// ErrorEvent reports a failed live operation to the offending connection.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() EventType { return EventError }
