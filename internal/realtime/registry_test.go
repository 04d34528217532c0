// internal/realtime/registry_test.go
package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	conn := NewConn(nil)

	replaced := reg.Register(playerID, "GAME01", conn)
	assert.Nil(t, replaced)

	got, ok := reg.Lookup(playerID)
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.True(t, reg.IsOnline(playerID))
	assert.Equal(t, 1, reg.RoomSize("GAME01"))
}

func TestRegistryRegisterReplacesAndClosesOld(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	first := NewConn(nil)
	second := NewConn(nil)

	reg.Register(playerID, "GAME01", first)
	replaced := reg.Register(playerID, "GAME01", second)

	assert.Same(t, first, replaced)
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	got, _ := reg.Lookup(playerID)
	assert.Same(t, second, got)
	assert.Equal(t, 1, reg.RoomSize("GAME01"), "a reconnect is not a second member")
}

func TestRegistryRegisterSameConnTwice(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	conn := NewConn(nil)

	reg.Register(playerID, "GAME01", conn)
	replaced := reg.Register(playerID, "GAME01", conn)

	assert.Nil(t, replaced)
	assert.False(t, conn.Closed(), "re-registering the same connection must not close it")
}

func TestRegistryUnregisterGuardsStaleConn(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	fresh := NewConn(nil)
	stale := NewConn(nil)

	reg.Register(playerID, "GAME01", fresh)

	// A stale transport closing late cannot evict the fresh registration.
	assert.False(t, reg.Unregister(playerID, stale))
	assert.True(t, reg.IsOnline(playerID))

	assert.True(t, reg.Unregister(playerID, fresh))
	assert.False(t, reg.IsOnline(playerID))
	assert.False(t, reg.Unregister(playerID, fresh), "already gone")
}

func TestRegistryUnregisterNilConnRemoves(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	reg.Register(playerID, "GAME01", NewConn(nil))

	assert.True(t, reg.Unregister(playerID, nil))
	assert.False(t, reg.IsOnline(playerID))
	assert.Equal(t, 0, reg.RoomSize("GAME01"))
}

func TestRegistryDropConn(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	conn := NewConn(nil)
	reg.Register(playerID, "GAME01", conn)

	assert.True(t, reg.DropConn(conn))
	assert.True(t, conn.Closed())
	assert.False(t, reg.IsOnline(playerID))

	// Unknown connections still get closed, nothing else happens.
	stray := NewConn(nil)
	assert.False(t, reg.DropConn(stray))
	assert.True(t, stray.Closed())
}

func TestRegistryMembersSnapshot(t *testing.T) {
	reg := NewRegistry()
	a, b := uuid.New(), uuid.New()
	connA, connB := NewConn(nil), NewConn(nil)
	reg.Register(a, "GAME01", connA)
	reg.Register(b, "GAME01", connB)
	reg.Register(uuid.New(), "GAME02", NewConn(nil))

	members := reg.Members("GAME01")
	assert.Len(t, members, 2)
	assert.ElementsMatch(t, []*Conn{connA, connB}, members)

	ids := reg.MemberIDs("GAME01")
	assert.ElementsMatch(t, []uuid.UUID{a, b}, ids)

	// Mutating after the snapshot does not alter it.
	reg.Unregister(a, connA)
	assert.Len(t, members, 2)
	assert.Equal(t, 1, reg.RoomSize("GAME01"))
}

func TestRegistryRoomPruned(t *testing.T) {
	reg := NewRegistry()
	playerID := uuid.New()
	conn := NewConn(nil)
	reg.Register(playerID, "GAME01", conn)
	reg.Unregister(playerID, conn)

	assert.Equal(t, 0, reg.RoomSize("GAME01"))
	assert.Empty(t, reg.Members("GAME01"))
}

func TestRegistryCloseAll(t *testing.T) {
	reg := NewRegistry()
	conns := make([]*Conn, 0, 5)
	for i := 0; i < 5; i++ {
		conn := NewConn(nil)
		conns = append(conns, conn)
		reg.Register(uuid.New(), fmt.Sprintf("GAME%02d", i%2), conn)
	}

	reg.CloseAll()

	for _, conn := range conns {
		assert.True(t, conn.Closed())
	}
	assert.Equal(t, 0, reg.RoomSize("GAME00"))
	assert.Equal(t, 0, reg.RoomSize("GAME01"))
}

func TestRegistryConcurrentChurn(t *testing.T) {
	reg := NewRegistry()
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			playerID := uuid.New()
			gameID := fmt.Sprintf("GAME%02d", i%4)
			for j := 0; j < 50; j++ {
				conn := NewConn(nil)
				reg.Register(playerID, gameID, conn)
				reg.Members(gameID)
				reg.IsOnline(playerID)
				if j%2 == 0 {
					reg.Unregister(playerID, conn)
				} else {
					reg.DropConn(conn)
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, reg.RoomSize(fmt.Sprintf("GAME%02d", i)))
	}
}
