// internal/lobby/coordinator.go

// Package lobby owns every mutation of shared room state: game creation,
// seating, kicks, chat, readiness and the start transition. All game-scoped
// writes run under a per-game mutex so capacity, name and start checks cannot
// interleave.
package lobby

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avagner/summit/internal/auth"
	"github.com/avagner/summit/internal/models"
	"github.com/avagner/summit/internal/realtime"
)

const (
	// maxMessageLen bounds chat bodies, in runes.
	maxMessageLen = 500

	// chatHistoryLimit is how many recent messages history reads return.
	chatHistoryLimit = 100

	// setupPhaseDuration is how long the first timed phase runs after start.
	setupPhaseDuration = 300 * time.Second

	startingAttackTroops  = 10
	startingDefenseTroops = 10
)

// Coordinator runs the lobby operations over injected collaborators. It is
// safe for concurrent use; each game's mutating operations serialize on that
// game's mutex.
type Coordinator struct {
	store    RecordStore
	sessions SessionStore
	reg      *realtime.Registry
	bus      *realtime.Bus
	log      *logrus.Logger

	locks sync.Map // game id -> *sync.Mutex
}

// NewCoordinator wires a coordinator.
func NewCoordinator(store RecordStore, sessions SessionStore, reg *realtime.Registry, bus *realtime.Bus, log *logrus.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		sessions: sessions,
		reg:      reg,
		bus:      bus,
		log:      log,
	}
}

// lockGame enters the game's critical section and returns the leave func.
func (c *Coordinator) lockGame(gameID string) func() {
	v, _ := c.locks.LoadOrStore(gameID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateGameParams carries the createGame inputs. Zero values select the
// defaults.
type CreateGameParams struct {
	Name       string
	HostName   string
	Password   string
	MaxPlayers int
	Language   models.Language
}

// GameDetail is the full room snapshot returned to a player: the game
// summary, the seated roster, and who the requester is within it. Ticket is
// only set by the operations that admit a player (create, join).
type GameDetail struct {
	Game            models.GameView     `json:"game"`
	Players         []models.PlayerView `json:"players"`
	CurrentPlayerID uuid.UUID           `json:"current_player_id"`
	IsHost          bool                `json:"is_host"`
	Ticket          string              `json:"ticket,omitempty"`
}

// SettingsPatch carries the updatable game settings; nil fields stay as they
// are. An empty Password clears the password.
type SettingsPatch struct {
	Name       *string          `json:"name,omitempty"`
	Password   *string          `json:"password,omitempty"`
	Language   *models.Language `json:"language,omitempty"`
	MaxPlayers *int             `json:"max_players,omitempty"`
}

// CreateGame creates a game with its host seated and returns the room
// snapshot plus the host's room ticket.
func (c *Coordinator) CreateGame(ctx context.Context, p CreateGameParams) (*GameDetail, error) {
	name := strings.TrimSpace(p.Name)
	hostName := strings.TrimSpace(p.HostName)
	if name == "" {
		return nil, Validationf("game name is required")
	}
	if hostName == "" {
		return nil, Validationf("player name is required")
	}

	maxPlayers := p.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = models.DefaultMaxPlayers
	}
	if maxPlayers < models.MinMaxPlayers || maxPlayers > models.MaxPlayersLimit {
		return nil, Validationf("max players must be between %d and %d", models.MinMaxPlayers, models.MaxPlayersLimit)
	}

	language := p.Language
	if language == "" {
		language = models.DefaultLanguage
	}
	if !language.Valid() {
		return nil, Validationf("unsupported language %q", language)
	}

	code, err := uniqueGameCode(ctx, c.store)
	if err != nil {
		return nil, err
	}

	passwordHash := ""
	if p.Password != "" {
		passwordHash, err = auth.HashPassword(p.Password)
		if err != nil {
			return nil, Internalf(err, "failed to create game")
		}
	}

	now := time.Now().UTC()
	game := &models.Game{
		ID:           code,
		Name:         name,
		PasswordHash: passwordHash,
		Language:     language,
		MaxPlayers:   maxPlayers,
		CurrentPhase: models.PhaseLobby,
		CreatedAt:    now,
	}
	host := &models.Player{
		ID:           uuid.New(),
		GameID:       code,
		Name:         hostName,
		Status:       models.StatusActive,
		IsHost:       true,
		JoinedAt:     now,
		LastActivity: now,
	}

	if err := c.store.CreateGame(ctx, game, host); err != nil {
		return nil, Internalf(err, "failed to create game")
	}

	ticket, err := auth.NewRoomTicket(host.ID, code)
	if err != nil {
		return nil, Internalf(err, "failed to create game")
	}

	c.log.WithFields(logrus.Fields{
		"game_id":   code,
		"player_id": host.ID,
	}).Info("game created")

	view := models.NewGameView(game, 1)
	view.HostName = host.Name
	return &GameDetail{
		Game:            view,
		Players:         models.NewPlayerViews([]*models.Player{host}),
		CurrentPlayerID: host.ID,
		IsHost:          true,
		Ticket:          ticket,
	}, nil
}

// ListOpenGames returns the joinable lobby listing, newest first.
func (c *Coordinator) ListOpenGames(ctx context.Context) ([]models.GameView, error) {
	views, err := c.store.ListOpenGames(ctx)
	if err != nil {
		return nil, Internalf(err, "failed to list games")
	}
	return views, nil
}

// GameExists reports whether a game code is in use. The room socket handshake
// checks this before accepting a connection for the room.
func (c *Coordinator) GameExists(ctx context.Context, gameID string) (bool, error) {
	exists, err := c.store.GameCodeExists(ctx, gameID)
	if err != nil {
		return false, Internalf(err, "failed to load game")
	}
	return exists, nil
}

// GameDetails returns the room snapshot for a seated player. No ticket:
// tickets only issue at create and join.
func (c *Coordinator) GameDetails(ctx context.Context, gameID string, playerID uuid.UUID) (*GameDetail, error) {
	game, player, err := c.member(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	players, err := c.store.ListSeatedPlayers(ctx, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to load game")
	}

	view := models.NewGameView(game, len(players))
	view.HostName = hostName(players)
	return &GameDetail{
		Game:            view,
		Players:         models.NewPlayerViews(players),
		CurrentPlayerID: player.ID,
		IsHost:          player.IsHost,
	}, nil
}

// JoinGame seats a new player. The existence, password, started, capacity and
// name checks run in that order, atomically under the game lock; the roster
// hears player_joined.
func (c *Coordinator) JoinGame(ctx context.Context, gameID, playerName, password string) (*GameDetail, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, Validationf("player name is required")
	}

	unlock := c.lockGame(gameID)
	defer unlock()

	game, err := c.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if game.HasPassword() {
		ok, err := auth.VerifyPassword(password, game.PasswordHash)
		if err != nil {
			return nil, Internalf(err, "failed to join game")
		}
		if !ok {
			return nil, Unauthorizedf("invalid password")
		}
	}

	if game.IsStarted {
		return nil, Validationf("game already started")
	}

	seated, err := c.store.CountSeated(ctx, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to join game")
	}
	if seated >= game.MaxPlayers {
		return nil, Validationf("game is full")
	}

	taken, err := c.store.SeatedNameExists(ctx, gameID, playerName)
	if err != nil {
		return nil, Internalf(err, "failed to join game")
	}
	if taken {
		return nil, Conflictf("player name already taken")
	}

	now := time.Now().UTC()
	player := &models.Player{
		ID:           uuid.New(),
		GameID:       gameID,
		Name:         playerName,
		Status:       models.StatusActive,
		JoinedAt:     now,
		LastActivity: now,
	}
	if err := c.store.InsertPlayer(ctx, player); err != nil {
		if KindOf(err) == KindConflict {
			return nil, err
		}
		return nil, Internalf(err, "failed to join game")
	}

	ticket, err := auth.NewRoomTicket(player.ID, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to join game")
	}

	players, err := c.store.ListSeatedPlayers(ctx, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to join game")
	}

	// The joiner has no socket yet, so the whole room hears it.
	c.bus.Broadcast(gameID, realtime.PlayerJoined{
		GameID:         gameID,
		Player:         models.NewPlayerView(player),
		CurrentPlayers: len(players),
	})

	c.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"player_id": player.ID,
	}).Info("player joined game")

	view := models.NewGameView(game, len(players))
	view.HostName = hostName(players)
	return &GameDetail{
		Game:            view,
		Players:         models.NewPlayerViews(players),
		CurrentPlayerID: player.ID,
		IsHost:          false,
		Ticket:          ticket,
	}, nil
}

// KickPlayer soft-removes a member: the seat and name free up, the row stays
// for history. Host only; the host itself is not kickable.
func (c *Coordinator) KickPlayer(ctx context.Context, gameID string, hostID, targetID uuid.UUID) error {
	unlock := c.lockGame(gameID)
	defer unlock()

	if _, err := c.loadGame(ctx, gameID); err != nil {
		return err
	}

	caller, err := c.store.GetPlayerInGame(ctx, hostID, gameID)
	if err != nil {
		return Internalf(err, "failed to kick player")
	}
	if caller == nil || !caller.Seated() || !caller.IsHost {
		return Forbiddenf("only the host can kick players")
	}

	target, err := c.store.GetPlayerInGame(ctx, targetID, gameID)
	if err != nil {
		return Internalf(err, "failed to kick player")
	}
	if target == nil || !target.Seated() {
		return NotFoundf("player not found")
	}
	if target.IsHost {
		return Validationf("the host cannot be kicked")
	}

	if err := c.store.MarkDisconnected(ctx, targetID); err != nil {
		return Internalf(err, "failed to kick player")
	}

	// Broadcast before dropping the target so it hears why its socket dies.
	c.bus.Broadcast(gameID, realtime.PlayerKicked{
		GameID:     gameID,
		PlayerID:   target.ID,
		PlayerName: target.Name,
	})

	if conn, ok := c.reg.Lookup(targetID); ok {
		c.reg.Unregister(targetID, conn)
		conn.Close()
	}
	if err := c.sessions.RemoveSession(ctx, targetID); err != nil {
		c.log.WithError(err).WithField("player_id", targetID).Warn("failed to drop session lease")
	}
	if err := c.sessions.RemoveOnline(ctx, gameID, targetID); err != nil {
		c.log.WithError(err).WithField("player_id", targetID).Warn("failed to drop online member")
	}

	c.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"player_id": targetID,
		"host_id":   hostID,
	}).Info("player kicked")
	return nil
}

// UpdateSettings applies a host's lobby-phase settings patch and announces
// the new summary to the room.
func (c *Coordinator) UpdateSettings(ctx context.Context, gameID string, hostID uuid.UUID, patch SettingsPatch) (*models.GameView, error) {
	unlock := c.lockGame(gameID)
	defer unlock()

	game, err := c.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	caller, err := c.store.GetPlayerInGame(ctx, hostID, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to update settings")
	}
	if caller == nil || !caller.Seated() || !caller.IsHost {
		return nil, Forbiddenf("only the host can change settings")
	}
	if game.IsStarted {
		return nil, Validationf("game already started")
	}

	seated, err := c.store.CountSeated(ctx, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to update settings")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, Validationf("game name is required")
		}
		game.Name = name
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			game.PasswordHash = ""
		} else {
			hash, err := auth.HashPassword(*patch.Password)
			if err != nil {
				return nil, Internalf(err, "failed to update settings")
			}
			game.PasswordHash = hash
		}
	}
	if patch.Language != nil {
		if !patch.Language.Valid() {
			return nil, Validationf("unsupported language %q", *patch.Language)
		}
		game.Language = *patch.Language
	}
	if patch.MaxPlayers != nil {
		mp := *patch.MaxPlayers
		if mp < models.MinMaxPlayers || mp > models.MaxPlayersLimit {
			return nil, Validationf("max players must be between %d and %d", models.MinMaxPlayers, models.MaxPlayersLimit)
		}
		if mp < seated {
			return nil, Validationf("max players cannot be below the current player count")
		}
		game.MaxPlayers = mp
	}

	if err := c.store.UpdateGameSettings(ctx, game); err != nil {
		return nil, Internalf(err, "failed to update settings")
	}

	view := models.NewGameView(game, seated)
	view.HostName = caller.Name
	c.bus.Broadcast(gameID, realtime.SettingsUpdated{Game: view})

	c.log.WithField("game_id", gameID).Info("game settings updated")
	return &view, nil
}

// ListMessages returns the recent chat history a player may read: public and
// system messages plus the private ones they sent or received.
func (c *Coordinator) ListMessages(ctx context.Context, gameID string, playerID uuid.UUID) ([]*models.ChatMessage, error) {
	if _, _, err := c.member(ctx, gameID, playerID); err != nil {
		return nil, err
	}

	msgs, err := c.store.ListMessages(ctx, gameID, chatHistoryLimit)
	if err != nil {
		return nil, Internalf(err, "failed to load messages")
	}

	visible := make([]*models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.VisibleTo(playerID) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// loadGame fetches a game, mapping absence to NotFound.
func (c *Coordinator) loadGame(ctx context.Context, gameID string) (*models.Game, error) {
	game, err := c.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, Internalf(err, "failed to load game")
	}
	if game == nil {
		return nil, NotFoundf("game not found")
	}
	return game, nil
}

// member loads the game and verifies the requester is a seated player of it.
func (c *Coordinator) member(ctx context.Context, gameID string, playerID uuid.UUID) (*models.Game, *models.Player, error) {
	game, err := c.loadGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	player, err := c.store.GetPlayerInGame(ctx, playerID, gameID)
	if err != nil {
		return nil, nil, Internalf(err, "failed to load game")
	}
	if player == nil || !player.Seated() {
		return nil, nil, Forbiddenf("not a player of this game")
	}
	return game, player, nil
}

func hostName(players []*models.Player) string {
	for _, p := range players {
		if p.IsHost {
			return p.Name
		}
	}
	return ""
}
