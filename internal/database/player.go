// internal/database/player.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/models"
)

const playerColumns = `id, game_id, name, status, is_host, is_ready,
       country, country_flag, country_code, attack_troops, defense_troops,
       socket_id, ping_ms, joined_at, last_activity`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(
		&p.ID, &p.GameID, &p.Name, &p.Status, &p.IsHost, &p.IsReady,
		&p.Country, &p.CountryFlag, &p.CountryCode, &p.AttackTroops, &p.DefenseTroops,
		&p.SocketID, &p.PingMS, &p.JoinedAt, &p.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertPlayerTx(ctx context.Context, tx pgx.Tx, p *models.Player) error {
	q := `INSERT INTO players (id, game_id, name, status, is_host, is_ready,
	                           attack_troops, defense_troops, joined_at, last_activity)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := tx.Exec(ctx, q,
		p.ID, p.GameID, p.Name, p.Status, p.IsHost, p.IsReady,
		p.AttackTroops, p.DefenseTroops, p.JoinedAt, p.LastActivity,
	)
	return err
}

// InsertPlayer adds a player row. A unique violation on the seated-name index
// surfaces as a Conflict error; the coordinator's own check runs first, this
// is the storage-level backstop.
func (s *Store) InsertPlayer(ctx context.Context, player *models.Player) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return insertPlayerTx(ctx, tx, player)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return lobby.Conflictf("player name already taken")
		}
		return fmt.Errorf("failed to insert player %s: %w", player.ID, err)
	}
	return nil
}

// GetPlayer loads a player row, nil when absent.
func (s *Store) GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE id=$1`
	p, err := scanPlayer(s.pool.QueryRow(ctx, q, playerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player %s: %w", playerID, err)
	}
	return p, nil
}

// GetPlayerInGame loads a player row scoped to a game, nil when absent.
func (s *Store) GetPlayerInGame(ctx context.Context, playerID uuid.UUID, gameID string) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE id=$1 AND game_id=$2`
	p, err := scanPlayer(s.pool.QueryRow(ctx, q, playerID, gameID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player %s in game %s: %w", playerID, gameID, err)
	}
	return p, nil
}

// GetPlayerBySocket finds the player currently paired with the connection
// handle, nil when nobody is.
func (s *Store) GetPlayerBySocket(ctx context.Context, socketID string) (*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players WHERE socket_id=$1`
	p, err := scanPlayer(s.pool.QueryRow(ctx, q, socketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player by socket %s: %w", socketID, err)
	}
	return p, nil
}

func (s *Store) listPlayers(ctx context.Context, q string, args ...any) ([]*models.Player, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ListSeatedPlayers returns non-disconnected players in join order.
func (s *Store) ListSeatedPlayers(ctx context.Context, gameID string) ([]*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players
	      WHERE game_id=$1 AND status <> 'disconnected'
	      ORDER BY joined_at, id`
	players, err := s.listPlayers(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seated players of game %s: %w", gameID, err)
	}
	return players, nil
}

// ListActivePlayers returns players with status active in join order.
func (s *Store) ListActivePlayers(ctx context.Context, gameID string) ([]*models.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM players
	      WHERE game_id=$1 AND status='active'
	      ORDER BY joined_at, id`
	players, err := s.listPlayers(ctx, q, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active players of game %s: %w", gameID, err)
	}
	return players, nil
}

// CountSeated counts non-disconnected players.
func (s *Store) CountSeated(ctx context.Context, gameID string) (int, error) {
	var n int
	q := `SELECT COUNT(*) FROM players WHERE game_id=$1 AND status <> 'disconnected'`
	if err := s.pool.QueryRow(ctx, q, gameID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count players of game %s: %w", gameID, err)
	}
	return n, nil
}

// SeatedNameExists reports whether a non-disconnected player already uses the
// name, case-insensitively.
func (s *Store) SeatedNameExists(ctx context.Context, gameID, name string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (
	        SELECT 1 FROM players
	        WHERE game_id=$1 AND lower(name)=lower($2) AND status <> 'disconnected'
	      )`
	if err := s.pool.QueryRow(ctx, q, gameID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check name in game %s: %w", gameID, err)
	}
	return exists, nil
}

// PairSocket binds the player to a live connection handle, reactivating the
// row and advancing last_activity.
func (s *Store) PairSocket(ctx context.Context, playerID uuid.UUID, socketID string, now time.Time) error {
	q := `UPDATE players SET socket_id=$2, status=$3, last_activity=$4 WHERE id=$1`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, playerID, socketID, models.StatusActive, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to pair socket for player %s: %w", playerID, err)
	}
	return nil
}

// MarkDisconnected sets status disconnected and clears the socket pairing.
func (s *Store) MarkDisconnected(ctx context.Context, playerID uuid.UUID) error {
	q := `UPDATE players SET status=$2, socket_id=NULL WHERE id=$1`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, playerID, models.StatusDisconnected)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark player %s disconnected: %w", playerID, err)
	}
	return nil
}

// TouchPlayer advances last_activity.
func (s *Store) TouchPlayer(ctx context.Context, playerID uuid.UUID, now time.Time) error {
	q := `UPDATE players SET last_activity=$2 WHERE id=$1`
	if _, err := s.pool.Exec(ctx, q, playerID, now); err != nil {
		return fmt.Errorf("failed to touch player %s: %w", playerID, err)
	}
	return nil
}

// SetPing writes the latency report where both the player id and the socket
// pairing match, reporting whether a row did.
func (s *Store) SetPing(ctx context.Context, playerID uuid.UUID, socketID string, pingMS int, now time.Time) (bool, error) {
	q := `UPDATE players SET ping_ms=$3, last_activity=$4 WHERE id=$1 AND socket_id=$2`
	tag, err := s.pool.Exec(ctx, q, playerID, socketID, pingMS, now)
	if err != nil {
		return false, fmt.Errorf("failed to set ping for player %s: %w", playerID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetReady writes the readiness flag where both the player id and the socket
// pairing match, reporting whether a row did.
func (s *Store) SetReady(ctx context.Context, playerID uuid.UUID, socketID string, ready bool, now time.Time) (bool, error) {
	q := `UPDATE players SET is_ready=$3, last_activity=$4 WHERE id=$1 AND socket_id=$2`
	tag, err := s.pool.Exec(ctx, q, playerID, socketID, ready, now)
	if err != nil {
		return false, fmt.Errorf("failed to set ready for player %s: %w", playerID, err)
	}
	return tag.RowsAffected() > 0, nil
}
