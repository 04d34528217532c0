// internal/cache/sessions.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avagner/summit/internal/models"
)

// TTLs for the domain keys. Session leases outlive any realistic socket
// lifetime; invitations are deliberately short.
const (
	SessionTTL    = 7200 * time.Second
	InvitationTTL = 30 * time.Second
)

func sessionKey(playerID uuid.UUID) string {
	return fmt.Sprintf("player_session:%s", playerID)
}

func invitationKey(gameID string, from, to uuid.UUID, kind string) string {
	return fmt.Sprintf("invitation:%s:%s:%s:%s", gameID, from, to, kind)
}

func phaseTimerKey(gameID string, phase models.Phase) string {
	return fmt.Sprintf("game_timer:%s:%s", gameID, phase)
}

func onlineKey(gameID string) string {
	return fmt.Sprintf("game_online:%s", gameID)
}

// StoreSession writes (or refreshes) the player's session lease.
func (c *Cache) StoreSession(ctx context.Context, lease models.SessionLease) error {
	return c.SetJSON(ctx, sessionKey(lease.PlayerID), lease, SessionTTL)
}

// GetSession loads the player's lease. Absence means "not reachable".
func (c *Cache) GetSession(ctx context.Context, playerID uuid.UUID) (*models.SessionLease, error) {
	var lease models.SessionLease
	ok, err := c.GetJSON(ctx, sessionKey(playerID), &lease)
	if err != nil || !ok {
		return nil, err
	}
	return &lease, nil
}

// RemoveSession drops the player's lease.
func (c *Cache) RemoveSession(ctx context.Context, playerID uuid.UUID) error {
	return c.Delete(ctx, sessionKey(playerID))
}

// StoreInvitation records a short-lived offer between two players.
func (c *Cache) StoreInvitation(ctx context.Context, inv models.Invitation) error {
	key := invitationKey(inv.GameID, inv.FromPlayerID, inv.ToPlayerID, inv.Type)
	return c.SetJSON(ctx, key, inv, InvitationTTL)
}

// GetInvitation loads an offer if it hasn't expired.
func (c *Cache) GetInvitation(ctx context.Context, gameID string, from, to uuid.UUID, kind string) (*models.Invitation, error) {
	var inv models.Invitation
	ok, err := c.GetJSON(ctx, invitationKey(gameID, from, to, kind), &inv)
	if err != nil || !ok {
		return nil, err
	}
	return &inv, nil
}

// RemoveInvitation withdraws an offer before its TTL.
func (c *Cache) RemoveInvitation(ctx context.Context, gameID string, from, to uuid.UUID, kind string) error {
	return c.Delete(ctx, invitationKey(gameID, from, to, kind))
}

// SetPhaseTimer records the deadline of a game phase; the key expires exactly
// when the phase does.
func (c *Cache) SetPhaseTimer(ctx context.Context, gameID string, phase models.Phase, d time.Duration) error {
	deadline := time.Now().Add(d)
	return c.SetJSON(ctx, phaseTimerKey(gameID, phase), deadline, d)
}

// GetPhaseTimer returns the phase deadline, or nil when none is running.
func (c *Cache) GetPhaseTimer(ctx context.Context, gameID string, phase models.Phase) (*time.Time, error) {
	var deadline time.Time
	ok, err := c.GetJSON(ctx, phaseTimerKey(gameID, phase), &deadline)
	if err != nil || !ok {
		return nil, err
	}
	return &deadline, nil
}

// AddOnline adds the player to the game's online-roster set. The set shadows
// the in-process registry so operations tooling can inspect who is connected.
func (c *Cache) AddOnline(ctx context.Context, gameID string, playerID uuid.UUID) error {
	return c.AddToSet(ctx, onlineKey(gameID), playerID.String())
}

// RemoveOnline removes the player from the game's online-roster set.
func (c *Cache) RemoveOnline(ctx context.Context, gameID string, playerID uuid.UUID) error {
	return c.RemoveFromSet(ctx, onlineKey(gameID), playerID.String())
}

// OnlinePlayers lists the game's online-roster set.
func (c *Cache) OnlinePlayers(ctx context.Context, gameID string) ([]uuid.UUID, error) {
	members, err := c.SetMembers(ctx, onlineKey(gameID))
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
