// internal/models/view.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameView is the client-facing shape of a game: the row minus secrets, plus
// fields derived from its players. It is what lobby listings, room snapshots,
// and game events carry.
type GameView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	HasPassword    bool       `json:"has_password"`
	Language       Language   `json:"language"`
	MaxPlayers     int        `json:"max_players"`
	CurrentPlayers int        `json:"current_players"`
	CurrentPhase   Phase      `json:"current_phase"`
	PhaseEndTime   *time.Time `json:"phase_end_time,omitempty"`
	IsStarted      bool       `json:"is_started"`
	HostName       string     `json:"host_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

// NewGameView builds the view for a game with a known seated-player count.
func NewGameView(g *Game, currentPlayers int) GameView {
	return GameView{
		ID:             g.ID,
		Name:           g.Name,
		HasPassword:    g.HasPassword(),
		Language:       g.Language,
		MaxPlayers:     g.MaxPlayers,
		CurrentPlayers: currentPlayers,
		CurrentPhase:   g.CurrentPhase,
		PhaseEndTime:   g.PhaseEndTime,
		IsStarted:      g.IsStarted,
		CreatedAt:      g.CreatedAt,
		StartedAt:      g.StartedAt,
	}
}

// PlayerView is the client-facing shape of a player. Socket pairing never
// leaves the server.
type PlayerView struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Status        PlayerStatus `json:"status"`
	IsHost        bool         `json:"is_host"`
	IsReady       bool         `json:"is_ready"`
	Country       *string      `json:"country,omitempty"`
	CountryFlag   *string      `json:"country_flag,omitempty"`
	CountryCode   *string      `json:"country_code,omitempty"`
	AttackTroops  int          `json:"attack_troops"`
	DefenseTroops int          `json:"defense_troops"`
	PingMS        *int         `json:"ping_ms,omitempty"`
	JoinedAt      time.Time    `json:"joined_at"`
}

// NewPlayerView builds the view of a single player.
func NewPlayerView(p *Player) PlayerView {
	return PlayerView{
		ID:            p.ID,
		Name:          p.Name,
		Status:        p.Status,
		IsHost:        p.IsHost,
		IsReady:       p.IsReady,
		Country:       p.Country,
		CountryFlag:   p.CountryFlag,
		CountryCode:   p.CountryCode,
		AttackTroops:  p.AttackTroops,
		DefenseTroops: p.DefenseTroops,
		PingMS:        p.PingMS,
		JoinedAt:      p.JoinedAt,
	}
}

// NewPlayerViews maps a roster.
func NewPlayerViews(players []*Player) []PlayerView {
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, NewPlayerView(p))
	}
	return views
}
