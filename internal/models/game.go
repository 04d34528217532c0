// internal/models/game.go
package models

import "time"

// Player-count bounds. MaxPlayersLimit matches the size of the country
// catalog, so every seat can always receive a distinct country at start.
const (
	DefaultMaxPlayers = 8
	MinMaxPlayers     = 4
	MaxPlayersLimit   = 10

	// MinPlayersToStart is the active-player floor for the lobby -> setup
	// transition.
	MinPlayersToStart = 4
)

// Language selects the localization a game was created with.
type Language string

const (
	LanguageEN Language = "en"
	LanguageRU Language = "ru"

	DefaultLanguage = LanguageEN
)

// Valid reports whether l names a supported language.
func (l Language) Valid() bool {
	return l == LanguageEN || l == LanguageRU
}

// Game is a row in the games table. ID is the short join code players type,
// never a UUID; see lobby.NewGameCode.
type Game struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Language     Language   `json:"language"`
	MaxPlayers   int        `json:"max_players"`
	CurrentPhase Phase      `json:"current_phase"`
	PhaseEndTime *time.Time `json:"phase_end_time,omitempty"`
	IsStarted    bool       `json:"is_started"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// HasPassword reports whether joining requires a password. The hash itself
// never leaves the server.
func (g *Game) HasPassword() bool {
	return g.PasswordHash != ""
}
