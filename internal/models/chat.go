// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind distinguishes room-wide chat from whispers and server notices.
type MessageKind string

const (
	MessagePublic  MessageKind = "public"
	MessagePrivate MessageKind = "private"
	MessageSystem  MessageKind = "system"
)

// ChatMessage is a row in the chat_messages table. Messages are persisted
// before delivery, so history survives even when nobody is online to hear
// them. PlayerName is denormalized so history reads don't join players.
type ChatMessage struct {
	ID             uuid.UUID   `json:"id"`
	GameID         string      `json:"game_id"`
	PlayerID       uuid.UUID   `json:"player_id"`
	PlayerName     string      `json:"player_name"`
	Body           string      `json:"body"`
	Kind           MessageKind `json:"kind"`
	TargetPlayerID *uuid.UUID  `json:"target_player_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// VisibleTo reports whether a player may read the message: public and system
// messages are visible to everyone in the game, private ones only to the two
// ends of the whisper.
func (m *ChatMessage) VisibleTo(playerID uuid.UUID) bool {
	if m.Kind != MessagePrivate {
		return true
	}
	if m.PlayerID == playerID {
		return true
	}
	return m.TargetPlayerID != nil && *m.TargetPlayerID == playerID
}
