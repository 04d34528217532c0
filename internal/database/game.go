// internal/database/game.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avagner/summit/internal/models"
)

const gameColumns = `id, name, password_hash, language, max_players, current_phase,
       phase_end_time, is_started, created_at, started_at, finished_at`

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.ID, &g.Name, &g.PasswordHash, &g.Language, &g.MaxPlayers, &g.CurrentPhase,
		&g.PhaseEndTime, &g.IsStarted, &g.CreatedAt, &g.StartedAt, &g.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGame persists a new game together with its host player in one
// transaction.
func (s *Store) CreateGame(ctx context.Context, game *models.Game, host *models.Player) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO games (id, name, password_hash, language, max_players, current_phase, is_started, created_at)
		      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.Exec(ctx, q,
			game.ID, game.Name, game.PasswordHash, game.Language,
			game.MaxPlayers, game.CurrentPhase, game.IsStarted, game.CreatedAt,
		); err != nil {
			return err
		}
		return insertPlayerTx(ctx, tx, host)
	})
	if err != nil {
		return fmt.Errorf("failed to insert game %s: %w", game.ID, err)
	}
	return nil
}

// GetGame loads a game row, nil when absent.
func (s *Store) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games WHERE id=$1`
	g, err := scanGame(s.pool.QueryRow(ctx, q, gameID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}
	return g, nil
}

// GameCodeExists reports whether a game already uses the code.
func (s *Store) GameCodeExists(ctx context.Context, gameID string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM games WHERE id=$1)`
	if err := s.pool.QueryRow(ctx, q, gameID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check game code %s: %w", gameID, err)
	}
	return exists, nil
}

// ListOpenGames returns un-started, un-finished games with their seated
// counts and host names, newest first.
func (s *Store) ListOpenGames(ctx context.Context) ([]models.GameView, error) {
	q := `
	SELECT g.id, g.name, g.password_hash <> '', g.language, g.max_players,
	       g.current_phase, g.phase_end_time, g.is_started, g.created_at, g.started_at,
	       COALESCE(h.name, ''),
	       (SELECT COUNT(*) FROM players p WHERE p.game_id = g.id AND p.status <> 'disconnected')
	FROM games g
	LEFT JOIN players h ON h.game_id = g.id AND h.is_host AND h.status <> 'disconnected'
	WHERE NOT g.is_started AND g.finished_at IS NULL
	ORDER BY g.created_at DESC
	`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list open games: %w", err)
	}
	defer rows.Close()

	var views []models.GameView
	for rows.Next() {
		var v models.GameView
		if err := rows.Scan(
			&v.ID, &v.Name, &v.HasPassword, &v.Language, &v.MaxPlayers,
			&v.CurrentPhase, &v.PhaseEndTime, &v.IsStarted, &v.CreatedAt, &v.StartedAt,
			&v.HostName, &v.CurrentPlayers,
		); err != nil {
			return nil, fmt.Errorf("failed to scan open game: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// UpdateGameSettings writes the host-editable fields.
func (s *Store) UpdateGameSettings(ctx context.Context, game *models.Game) error {
	q := `UPDATE games SET name=$2, password_hash=$3, language=$4, max_players=$5 WHERE id=$1`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, game.ID, game.Name, game.PasswordHash, game.Language, game.MaxPlayers)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update settings for game %s: %w", game.ID, err)
	}
	return nil
}

// RecordStart atomically writes the started game row and the whole updated
// roster: country assignments, troop seeds and ready resets.
func (s *Store) RecordStart(ctx context.Context, game *models.Game, players []*models.Player) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		gq := `UPDATE games
		       SET is_started=$2, current_phase=$3, phase_end_time=$4, started_at=$5
		       WHERE id=$1`
		if _, err := tx.Exec(ctx, gq,
			game.ID, game.IsStarted, game.CurrentPhase, game.PhaseEndTime, game.StartedAt,
		); err != nil {
			return err
		}

		pq := `UPDATE players
		       SET country=$2, country_flag=$3, country_code=$4,
		           attack_troops=$5, defense_troops=$6, is_ready=$7
		       WHERE id=$1`
		for _, p := range players {
			if _, err := tx.Exec(ctx, pq,
				p.ID, p.Country, p.CountryFlag, p.CountryCode,
				p.AttackTroops, p.DefenseTroops, p.IsReady,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record start of game %s: %w", game.ID, err)
	}
	return nil
}

// FinishGame marks a game finished.
func (s *Store) FinishGame(ctx context.Context, gameID string, at time.Time) error {
	q := `UPDATE games SET current_phase=$2, finished_at=$3 WHERE id=$1 AND finished_at IS NULL`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, gameID, models.PhaseFinished, at)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to finish game %s: %w", gameID, err)
	}
	return nil
}

// ListIdleLobbies returns un-started, un-finished games created before the
// cutoff where no seated player has shown activity since it.
func (s *Store) ListIdleLobbies(ctx context.Context, cutoff time.Time) ([]models.Game, error) {
	q := `
	SELECT ` + gameColumns + `
	FROM games g
	WHERE NOT g.is_started AND g.finished_at IS NULL AND g.created_at < $1
	  AND NOT EXISTS (
	      SELECT 1 FROM players p
	      WHERE p.game_id = g.id AND p.status <> 'disconnected' AND p.last_activity >= $1
	  )
	`
	rows, err := s.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle lobbies: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan idle lobby: %w", err)
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}
