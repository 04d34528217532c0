// internal/database/chat.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avagner/summit/internal/models"
)

const messageColumns = `id, game_id, player_id, player_name, body, kind, target_player_id, created_at`

// InsertMessage persists a chat line.
func (s *Store) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	q := `INSERT INTO chat_messages (` + messageColumns + `)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			msg.ID, msg.GameID, msg.PlayerID, msg.PlayerName,
			msg.Body, msg.Kind, msg.TargetPlayerID, msg.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
	}
	return nil
}

// ListMessages returns the latest limit messages of a game, oldest first.
func (s *Store) ListMessages(ctx context.Context, gameID string, limit int) ([]*models.ChatMessage, error) {
	q := `SELECT ` + messageColumns + ` FROM chat_messages
	      WHERE game_id=$1
	      ORDER BY created_at DESC, id DESC
	      LIMIT $2`
	rows, err := s.pool.Query(ctx, q, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of game %s: %w", gameID, err)
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		err := rows.Scan(
			&m.ID, &m.GameID, &m.PlayerID, &m.PlayerName,
			&m.Body, &m.Kind, &m.TargetPlayerID, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages of game %s: %w", gameID, err)
	}

	// Query walks newest first so LIMIT keeps the tail; flip back to
	// chronological order for delivery.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
