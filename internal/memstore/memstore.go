// internal/memstore/memstore.go

// Package memstore keeps the whole lobby state in process memory behind the
// same contracts internal/database and internal/cache satisfy. It backs
// tests and toolless local runs; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/models"
)

// Store is an in-memory RecordStore and SessionStore. Reads hand out copies
// so callers can mutate results freely, matching row-scan behavior.
type Store struct {
	mu       sync.RWMutex
	games    map[string]*models.Game
	players  map[uuid.UUID]*models.Player
	messages map[string][]*models.ChatMessage
	sessions map[uuid.UUID]models.SessionLease
	online   map[string]map[uuid.UUID]struct{}
	timers   map[string]models.Phase
}

// New creates an empty store.
func New() *Store {
	return &Store{
		games:    make(map[string]*models.Game),
		players:  make(map[uuid.UUID]*models.Player),
		messages: make(map[string][]*models.ChatMessage),
		sessions: make(map[uuid.UUID]models.SessionLease),
		online:   make(map[string]map[uuid.UUID]struct{}),
		timers:   make(map[string]models.Phase),
	}
}

func cloneGame(g *models.Game) *models.Game {
	cp := *g
	cp.PhaseEndTime = cloneTime(g.PhaseEndTime)
	cp.StartedAt = cloneTime(g.StartedAt)
	cp.FinishedAt = cloneTime(g.FinishedAt)
	return &cp
}

func clonePlayer(p *models.Player) *models.Player {
	cp := *p
	cp.Country = cloneString(p.Country)
	cp.CountryFlag = cloneString(p.CountryFlag)
	cp.CountryCode = cloneString(p.CountryCode)
	cp.SocketID = cloneString(p.SocketID)
	cp.PingMS = cloneInt(p.PingMS)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	cp := *n
	return &cp
}

func (s *Store) CreateGame(_ context.Context, game *models.Game, host *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = cloneGame(game)
	s.players[host.ID] = clonePlayer(host)
	return nil
}

func (s *Store) GetGame(_ context.Context, gameID string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (s *Store) GameCodeExists(_ context.Context, gameID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.games[gameID]
	return ok, nil
}

func (s *Store) ListOpenGames(_ context.Context) ([]models.GameView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*models.Game
	for _, g := range s.games {
		if !g.IsStarted && g.FinishedAt == nil {
			open = append(open, g)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.After(open[j].CreatedAt)
	})

	views := make([]models.GameView, 0, len(open))
	for _, g := range open {
		view := models.NewGameView(g, s.countSeatedLocked(g.ID))
		for _, p := range s.players {
			if p.GameID == g.ID && p.IsHost {
				view.HostName = p.Name
				break
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Store) UpdateGameSettings(_ context.Context, game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game.ID]
	if !ok {
		return nil
	}
	g.Name = game.Name
	g.PasswordHash = game.PasswordHash
	g.Language = game.Language
	g.MaxPlayers = game.MaxPlayers
	return nil
}

func (s *Store) RecordStart(_ context.Context, game *models.Game, players []*models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = cloneGame(game)
	for _, p := range players {
		stored, ok := s.players[p.ID]
		if !ok {
			continue
		}
		stored.Country = cloneString(p.Country)
		stored.CountryFlag = cloneString(p.CountryFlag)
		stored.CountryCode = cloneString(p.CountryCode)
		stored.AttackTroops = p.AttackTroops
		stored.DefenseTroops = p.DefenseTroops
		stored.IsReady = p.IsReady
	}
	return nil
}

func (s *Store) FinishGame(_ context.Context, gameID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok || g.FinishedAt != nil {
		return nil
	}
	g.CurrentPhase = models.PhaseFinished
	g.FinishedAt = cloneTime(&at)
	return nil
}

func (s *Store) ListIdleLobbies(_ context.Context, cutoff time.Time) ([]models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var idle []models.Game
	for _, g := range s.games {
		if g.IsStarted || g.FinishedAt != nil || !g.CreatedAt.Before(cutoff) {
			continue
		}
		active := false
		for _, p := range s.players {
			if p.GameID == g.ID && p.Seated() && !p.LastActivity.Before(cutoff) {
				active = true
				break
			}
		}
		if !active {
			idle = append(idle, *cloneGame(g))
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		return idle[i].CreatedAt.Before(idle[j].CreatedAt)
	})
	return idle, nil
}

func (s *Store) InsertPlayer(_ context.Context, player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.GameID == player.GameID && p.Seated() && strings.EqualFold(p.Name, player.Name) {
			return lobby.Conflictf("player name already taken")
		}
	}
	s.players[player.ID] = clonePlayer(player)
	return nil
}

func (s *Store) GetPlayer(_ context.Context, playerID uuid.UUID) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, nil
	}
	return clonePlayer(p), nil
}

func (s *Store) GetPlayerInGame(_ context.Context, playerID uuid.UUID, gameID string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok || p.GameID != gameID {
		return nil, nil
	}
	return clonePlayer(p), nil
}

func (s *Store) GetPlayerBySocket(_ context.Context, socketID string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.SocketID != nil && *p.SocketID == socketID {
			return clonePlayer(p), nil
		}
	}
	return nil, nil
}

func (s *Store) listPlayersLocked(gameID string, keep func(*models.Player) bool) []*models.Player {
	var players []*models.Player
	for _, p := range s.players {
		if p.GameID == gameID && keep(p) {
			players = append(players, clonePlayer(p))
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID.String() < players[j].ID.String()
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players
}

func (s *Store) ListSeatedPlayers(_ context.Context, gameID string) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPlayersLocked(gameID, (*models.Player).Seated), nil
}

func (s *Store) ListActivePlayers(_ context.Context, gameID string) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPlayersLocked(gameID, func(p *models.Player) bool {
		return p.Status == models.StatusActive
	}), nil
}

func (s *Store) countSeatedLocked(gameID string) int {
	n := 0
	for _, p := range s.players {
		if p.GameID == gameID && p.Seated() {
			n++
		}
	}
	return n
}

func (s *Store) CountSeated(_ context.Context, gameID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countSeatedLocked(gameID), nil
}

func (s *Store) SeatedNameExists(_ context.Context, gameID, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.GameID == gameID && p.Seated() && strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PairSocket(_ context.Context, playerID uuid.UUID, socketID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil
	}
	p.SocketID = cloneString(&socketID)
	p.Status = models.StatusActive
	p.LastActivity = now
	return nil
}

func (s *Store) MarkDisconnected(_ context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil
	}
	p.Status = models.StatusDisconnected
	p.SocketID = nil
	return nil
}

func (s *Store) TouchPlayer(_ context.Context, playerID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		p.LastActivity = now
	}
	return nil
}

func (s *Store) SetPing(_ context.Context, playerID uuid.UUID, socketID string, pingMS int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.SocketID == nil || *p.SocketID != socketID {
		return false, nil
	}
	p.PingMS = cloneInt(&pingMS)
	p.LastActivity = now
	return true, nil
}

func (s *Store) SetReady(_ context.Context, playerID uuid.UUID, socketID string, ready bool, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.SocketID == nil || *p.SocketID != socketID {
		return false, nil
	}
	p.IsReady = ready
	p.LastActivity = now
	return true, nil
}

func (s *Store) InsertMessage(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.GameID] = append(s.messages[msg.GameID], &cp)
	return nil
}

func (s *Store) ListMessages(_ context.Context, gameID string, limit int) ([]*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[gameID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	msgs := make([]*models.ChatMessage, 0, len(all))
	for _, m := range all {
		cp := *m
		msgs = append(msgs, &cp)
	}
	return msgs, nil
}

func (s *Store) StoreSession(_ context.Context, lease models.SessionLease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[lease.PlayerID] = lease
	return nil
}

func (s *Store) RemoveSession(_ context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, playerID)
	return nil
}

// Session returns the stored lease for assertions in tests.
func (s *Store) Session(playerID uuid.UUID) (models.SessionLease, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lease, ok := s.sessions[playerID]
	return lease, ok
}

func (s *Store) AddOnline(_ context.Context, gameID string, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.online[gameID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.online[gameID] = set
	}
	set[playerID] = struct{}{}
	return nil
}

func (s *Store) RemoveOnline(_ context.Context, gameID string, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.online[gameID]; ok {
		delete(set, playerID)
		if len(set) == 0 {
			delete(s.online, gameID)
		}
	}
	return nil
}

// OnlineCount returns the size of a game's online roster set.
func (s *Store) OnlineCount(gameID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.online[gameID])
}

func (s *Store) SetPhaseTimer(_ context.Context, gameID string, phase models.Phase, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[gameID] = phase
	return nil
}

// PhaseTimer returns the last phase a timer was armed for.
func (s *Store) PhaseTimer(gameID string) (models.Phase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phase, ok := s.timers[gameID]
	return phase, ok
}
