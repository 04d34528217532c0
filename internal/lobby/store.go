// internal/lobby/store.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avagner/summit/internal/models"
)

// RecordStore is the durable source of truth the Coordinator reads and
// writes. internal/database implements it over PostgreSQL;
// internal/memstore implements it in memory for tests and local runs.
//
// Lookup methods return (nil, nil) when the row does not exist; only real
// failures are errors. The Coordinator enforces the room rules; the store's
// only contribution is the unique-name index backstop, which surfaces as a
// Conflict *Error from InsertPlayer.
type RecordStore interface {
	// CreateGame persists a new game together with its host player,
	// atomically.
	CreateGame(ctx context.Context, game *models.Game, host *models.Player) error

	GetGame(ctx context.Context, gameID string) (*models.Game, error)
	GameCodeExists(ctx context.Context, gameID string) (bool, error)

	// ListOpenGames returns un-started, un-finished games with derived
	// seated counts and host names, newest first.
	ListOpenGames(ctx context.Context) ([]models.GameView, error)

	// UpdateGameSettings writes name, password hash, language and
	// max_players for the game.
	UpdateGameSettings(ctx context.Context, game *models.Game) error

	// RecordStart atomically writes the started game row and the whole
	// updated roster (country assignments, troop seeds, ready resets).
	RecordStart(ctx context.Context, game *models.Game, players []*models.Player) error

	// FinishGame marks a game finished at the given time.
	FinishGame(ctx context.Context, gameID string, at time.Time) error

	// ListIdleLobbies returns un-started, un-finished games created before
	// the cutoff where no seated player has shown activity since it.
	ListIdleLobbies(ctx context.Context, cutoff time.Time) ([]models.Game, error)

	InsertPlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error)
	GetPlayerInGame(ctx context.Context, playerID uuid.UUID, gameID string) (*models.Player, error)
	GetPlayerBySocket(ctx context.Context, socketID string) (*models.Player, error)

	// ListSeatedPlayers returns players whose status is not disconnected,
	// in join order. ListActivePlayers narrows to status active.
	ListSeatedPlayers(ctx context.Context, gameID string) ([]*models.Player, error)
	ListActivePlayers(ctx context.Context, gameID string) ([]*models.Player, error)
	CountSeated(ctx context.Context, gameID string) (int, error)
	SeatedNameExists(ctx context.Context, gameID, name string) (bool, error)

	// PairSocket binds the player to a live connection handle, reactivates
	// the row and advances last_activity.
	PairSocket(ctx context.Context, playerID uuid.UUID, socketID string, now time.Time) error

	// MarkDisconnected sets status disconnected and clears the socket
	// pairing.
	MarkDisconnected(ctx context.Context, playerID uuid.UUID) error

	// TouchPlayer advances last_activity.
	TouchPlayer(ctx context.Context, playerID uuid.UUID, now time.Time) error

	// SetPing and SetReady are conditional writes: they apply only where
	// both the player id and the socket pairing match, and report whether
	// a row matched.
	SetPing(ctx context.Context, playerID uuid.UUID, socketID string, pingMS int, now time.Time) (bool, error)
	SetReady(ctx context.Context, playerID uuid.UUID, socketID string, ready bool, now time.Time) (bool, error)

	InsertMessage(ctx context.Context, msg *models.ChatMessage) error

	// ListMessages returns up to limit most recent messages for the game,
	// oldest first.
	ListMessages(ctx context.Context, gameID string, limit int) ([]*models.ChatMessage, error)
}

// SessionStore is the ephemeral key store surface the Coordinator touches:
// session leases and the per-game online roster set. internal/cache
// implements it over Redis. Failures here degrade observability, not
// correctness, so the Coordinator logs them and keeps going.
type SessionStore interface {
	StoreSession(ctx context.Context, lease models.SessionLease) error
	RemoveSession(ctx context.Context, playerID uuid.UUID) error
	AddOnline(ctx context.Context, gameID string, playerID uuid.UUID) error
	RemoveOnline(ctx context.Context, gameID string, playerID uuid.UUID) error
	SetPhaseTimer(ctx context.Context, gameID string, phase models.Phase, d time.Duration) error
}
