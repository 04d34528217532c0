// internal/cache/redis_test.go
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avagner/summit/internal/models"
)

// newTestCache connects to a locally reachable Redis (REDIS_ADDR, default
// localhost:6379) and skips the test when there is none. Every test uses
// freshly generated IDs so runs never collide with each other or with
// leftover keys.
func newTestCache(t *testing.T) *Cache {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	key := "summit_test:" + uuid.NewString()
	t.Cleanup(func() { _ = c.Delete(context.Background(), key) })

	require.NoError(t, c.SetJSON(ctx, key, payload{Name: "vienna", Count: 3}, time.Minute))

	var got payload
	found, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload{Name: "vienna", Count: 3}, got)

	exists, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	// A miss is (false, nil), never an error, and the destination stays zero.
	var miss payload
	found, err = c.GetJSON(ctx, "summit_test:"+uuid.NewString(), &miss)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, miss)

	require.NoError(t, c.Delete(ctx, key))
	exists, err = c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent key is a no-op.
	require.NoError(t, c.Delete(ctx, key))
}

func TestSetOperations(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := "summit_test:" + uuid.NewString()
	t.Cleanup(func() { _ = c.Delete(context.Background(), key) })

	require.NoError(t, c.AddToSet(ctx, key, "anna"))
	require.NoError(t, c.AddToSet(ctx, key, "anna")) // idempotent
	require.NoError(t, c.AddToSet(ctx, key, "boris"))

	members, err := c.SetMembers(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"anna", "boris"}, members)

	require.NoError(t, c.RemoveFromSet(ctx, key, "anna"))
	members, err = c.SetMembers(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"boris"}, members)

	// Removing the last member drops the key entirely.
	require.NoError(t, c.RemoveFromSet(ctx, key, "boris"))
	members, err = c.SetMembers(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, members)

	exists, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionLease(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	lease := models.SessionLease{
		PlayerID: uuid.New(),
		GameID:   "G" + uuid.NewString()[:7],
		SocketID: uuid.NewString(),
	}
	t.Cleanup(func() { _ = c.RemoveSession(context.Background(), lease.PlayerID) })

	require.NoError(t, c.StoreSession(ctx, lease))

	got, err := c.GetSession(ctx, lease.PlayerID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, lease, *got)

	// The lease carries the session TTL.
	ttl, err := c.rdb.TTL(ctx, sessionKey(lease.PlayerID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, SessionTTL)

	// Absence is a nil lease, not an error.
	got, err = c.GetSession(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.RemoveSession(ctx, lease.PlayerID))
	got, err = c.GetSession(ctx, lease.PlayerID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvitationLifecycle(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	inv := models.Invitation{
		GameID:       "G" + uuid.NewString()[:7],
		FromPlayerID: uuid.New(),
		ToPlayerID:   uuid.New(),
		Type:         "alliance",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	t.Cleanup(func() {
		_ = c.RemoveInvitation(context.Background(), inv.GameID, inv.FromPlayerID, inv.ToPlayerID, inv.Type)
	})

	require.NoError(t, c.StoreInvitation(ctx, inv))

	got, err := c.GetInvitation(ctx, inv.GameID, inv.FromPlayerID, inv.ToPlayerID, inv.Type)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inv.Type, got.Type)
	assert.Equal(t, inv.FromPlayerID, got.FromPlayerID)
	assert.True(t, inv.CreatedAt.Equal(got.CreatedAt))

	// Invitations are deliberately short-lived.
	ttl, err := c.rdb.TTL(ctx, invitationKey(inv.GameID, inv.FromPlayerID, inv.ToPlayerID, inv.Type)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, InvitationTTL)

	// A different kind between the same players is a different key.
	got, err = c.GetInvitation(ctx, inv.GameID, inv.FromPlayerID, inv.ToPlayerID, "negotiation")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.RemoveInvitation(ctx, inv.GameID, inv.FromPlayerID, inv.ToPlayerID, inv.Type))
	got, err = c.GetInvitation(ctx, inv.GameID, inv.FromPlayerID, inv.ToPlayerID, inv.Type)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPhaseTimer(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	gameID := "G" + uuid.NewString()[:7]
	t.Cleanup(func() {
		_ = c.Delete(context.Background(), phaseTimerKey(gameID, models.PhaseSetup))
	})

	before := time.Now()
	require.NoError(t, c.SetPhaseTimer(ctx, gameID, models.PhaseSetup, 5*time.Minute))

	deadline, err := c.GetPhaseTimer(ctx, gameID, models.PhaseSetup)
	require.NoError(t, err)
	require.NotNil(t, deadline)
	assert.WithinDuration(t, before.Add(5*time.Minute), *deadline, 2*time.Second)

	// Timers are per phase; no timer means nil.
	deadline, err = c.GetPhaseTimer(ctx, gameID, models.PhaseAction)
	require.NoError(t, err)
	assert.Nil(t, deadline)
}

func TestOnlineRoster(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	gameID := "G" + uuid.NewString()[:7]
	anna, boris := uuid.New(), uuid.New()
	t.Cleanup(func() { _ = c.Delete(context.Background(), onlineKey(gameID)) })

	require.NoError(t, c.AddOnline(ctx, gameID, anna))
	require.NoError(t, c.AddOnline(ctx, gameID, boris))

	online, err := c.OnlinePlayers(ctx, gameID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{anna, boris}, online)

	require.NoError(t, c.RemoveOnline(ctx, gameID, anna))
	online, err = c.OnlinePlayers(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{boris}, online)

	// An empty roster is an empty slice, not an error.
	online, err = c.OnlinePlayers(ctx, "G"+uuid.NewString()[:7])
	require.NoError(t, err)
	assert.Empty(t, online)
}
