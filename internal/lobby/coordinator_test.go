// internal/lobby/coordinator_test.go
package lobby_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avagner/summit/internal/auth"
	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/memstore"
	"github.com/avagner/summit/internal/models"
	"github.com/avagner/summit/internal/realtime"
)

func TestMain(m *testing.M) {
	auth.Init() // ephemeral ticket keys, no persistence needed
	os.Exit(m.Run())
}

// fixture wires a coordinator over the in-memory store, a real registry and a
// real bus. Tests observe broadcasts by registering connections and draining
// their outbound queues.
type fixture struct {
	store *memstore.Store
	reg   *realtime.Registry
	bus   *realtime.Bus
	coord *lobby.Coordinator
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := memstore.New()
	reg := realtime.NewRegistry()
	bus := realtime.NewBus(reg, logger)
	return &fixture{
		store: store,
		reg:   reg,
		bus:   bus,
		coord: lobby.NewCoordinator(store, store, reg, bus, logger),
	}
}

func (f *fixture) createGame(t *testing.T, name, hostName string, maxPlayers int) *lobby.GameDetail {
	t.Helper()
	detail, err := f.coord.CreateGame(context.Background(), lobby.CreateGameParams{
		Name:       name,
		HostName:   hostName,
		MaxPlayers: maxPlayers,
	})
	require.NoError(t, err)
	return detail
}

func (f *fixture) join(t *testing.T, gameID, playerName string) *lobby.GameDetail {
	t.Helper()
	detail, err := f.coord.JoinGame(context.Background(), gameID, playerName, "")
	require.NoError(t, err)
	return detail
}

// connect pairs a live connection for the player and drains the join events,
// so subsequent assertions see only what the test itself triggers.
func (f *fixture) connect(t *testing.T, gameID string, playerID uuid.UUID) *realtime.Conn {
	t.Helper()
	ticket, err := auth.NewRoomTicket(playerID, gameID)
	require.NoError(t, err)
	conn := realtime.NewConn(nil)
	require.NoError(t, f.coord.JoinRoom(context.Background(), gameID, playerID, ticket, conn))
	drain(conn)
	return conn
}

// drain empties a connection's outbound queue and returns what was in it.
func drain(conn *realtime.Conn) []realtime.Envelope {
	var evs []realtime.Envelope
	for {
		select {
		case env, ok := <-conn.Out():
			if !ok {
				return evs
			}
			evs = append(evs, env)
		default:
			return evs
		}
	}
}

func eventTypes(evs []realtime.Envelope) []realtime.EventType {
	types := make([]realtime.EventType, 0, len(evs))
	for _, env := range evs {
		types = append(types, env.Type)
	}
	return types
}

func findEvent(evs []realtime.Envelope, typ realtime.EventType) (realtime.Event, bool) {
	for _, env := range evs {
		if env.Type == typ {
			return env.Data, true
		}
	}
	return nil, false
}

func TestCreateGameSeatsHost(t *testing.T) {
	f := newFixture()
	detail := f.createGame(t, "Alpha", "Hana", 0)

	assert.Len(t, detail.Game.ID, lobby.GameCodeLength)
	assert.Equal(t, "Alpha", detail.Game.Name)
	assert.Equal(t, models.DefaultMaxPlayers, detail.Game.MaxPlayers)
	assert.Equal(t, models.PhaseLobby, detail.Game.CurrentPhase)
	assert.Equal(t, models.LanguageEN, detail.Game.Language)
	assert.False(t, detail.Game.HasPassword)
	assert.Equal(t, 1, detail.Game.CurrentPlayers)
	assert.Equal(t, "Hana", detail.Game.HostName)
	assert.True(t, detail.IsHost)
	assert.NotEmpty(t, detail.Ticket)

	require.Len(t, detail.Players, 1)
	host := detail.Players[0]
	assert.Equal(t, detail.CurrentPlayerID, host.ID)
	assert.True(t, host.IsHost)
	assert.False(t, host.IsReady)
	assert.Equal(t, models.StatusActive, host.Status)

	stored, err := f.store.GetGame(context.Background(), detail.Game.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsStarted)
}

func TestCreateGameValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		params lobby.CreateGameParams
	}{
		{"empty game name", lobby.CreateGameParams{Name: "  ", HostName: "h"}},
		{"empty host name", lobby.CreateGameParams{Name: "g", HostName: ""}},
		{"max players too low", lobby.CreateGameParams{Name: "g", HostName: "h", MaxPlayers: 3}},
		{"max players too high", lobby.CreateGameParams{Name: "g", HostName: "h", MaxPlayers: 11}},
		{"unknown language", lobby.CreateGameParams{Name: "g", HostName: "h", Language: "de"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coord.CreateGame(ctx, tc.params)
			require.Error(t, err)
			assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))
		})
	}
}

func TestCreateGameHashesPassword(t *testing.T) {
	f := newFixture()
	detail, err := f.coord.CreateGame(context.Background(), lobby.CreateGameParams{
		Name:     "Secret",
		HostName: "Hana",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.True(t, detail.Game.HasPassword)

	stored, err := f.store.GetGame(context.Background(), detail.Game.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.PasswordHash, "password must not be stored in the clear")
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestListOpenGames(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.createGame(t, "First", "A", 4)
	second := f.createGame(t, "Second", "B", 6)
	f.join(t, second.Game.ID, "C")

	views, err := f.coord.ListOpenGames(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]models.GameView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.Equal(t, 1, byID[first.Game.ID].CurrentPlayers)
	assert.Equal(t, "A", byID[first.Game.ID].HostName)
	assert.Equal(t, 2, byID[second.Game.ID].CurrentPlayers)

	// A started game drops out of the listing.
	for _, name := range []string{"P2", "P3", "P4"} {
		f.join(t, first.Game.ID, name)
	}
	f.startGame(t, first)

	views, err = f.coord.ListOpenGames(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, second.Game.ID, views[0].ID)
}

// startGame connects every seated player and has the host start the game.
func (f *fixture) startGame(t *testing.T, detail *lobby.GameDetail) {
	t.Helper()
	players, err := f.store.ListSeatedPlayers(context.Background(), detail.Game.ID)
	require.NoError(t, err)
	var hostConn *realtime.Conn
	for _, p := range players {
		conn := f.connect(t, detail.Game.ID, p.ID)
		if p.IsHost {
			hostConn = conn
		}
	}
	require.NotNil(t, hostConn)
	require.NoError(t, f.coord.StartGame(context.Background(), detail.Game.ID, detail.CurrentPlayerID, hostConn))
}

func TestJoinGamePasswordFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	detail, err := f.coord.CreateGame(ctx, lobby.CreateGameParams{
		Name:     "Guarded",
		HostName: "Hana",
		Password: "secret",
	})
	require.NoError(t, err)

	_, err = f.coord.JoinGame(ctx, detail.Game.ID, "Mallory", "wrong")
	require.Error(t, err)
	assert.Equal(t, lobby.KindUnauthorized, lobby.KindOf(err))
	assert.Equal(t, "invalid password", lobby.AsError(err).Message)

	joined, err := f.coord.JoinGame(ctx, detail.Game.ID, "Bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, 2, joined.Game.CurrentPlayers)
	assert.NotEmpty(t, joined.Ticket)
	assert.False(t, joined.IsHost)
}

func TestJoinGameRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.coord.JoinGame(ctx, "ZZZZZZ", "Bob", "")
	require.Error(t, err)
	assert.Equal(t, lobby.KindNotFound, lobby.KindOf(err))

	detail := f.createGame(t, "Alpha", "Hana", 4)

	_, err = f.coord.JoinGame(ctx, detail.Game.ID, "  ", "")
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))

	_, err = f.coord.JoinGame(ctx, detail.Game.ID, "hana", "")
	require.Error(t, err)
	assert.Equal(t, lobby.KindConflict, lobby.KindOf(err), "names are unique case-insensitively")

	for _, name := range []string{"P2", "P3", "P4"} {
		f.join(t, detail.Game.ID, name)
	}
	_, err = f.coord.JoinGame(ctx, detail.Game.ID, "Overflow", "")
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))
	assert.Equal(t, "game is full", lobby.AsError(err).Message)
}

func TestJoinGameRejectedOnceStarted(t *testing.T) {
	f := newFixture()
	detail := f.createGame(t, "Alpha", "Hana", 6)
	for _, name := range []string{"P2", "P3", "P4"} {
		f.join(t, detail.Game.ID, name)
	}
	f.startGame(t, detail)

	_, err := f.coord.JoinGame(context.Background(), detail.Game.ID, "Late", "")
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))
	assert.Equal(t, "game already started", lobby.AsError(err).Message)
}

func TestJoinGameBroadcastsToRoom(t *testing.T) {
	f := newFixture()
	detail := f.createGame(t, "Alpha", "Hana", 4)
	hostConn := f.connect(t, detail.Game.ID, detail.CurrentPlayerID)

	joined := f.join(t, detail.Game.ID, "Bob")

	evs := drain(hostConn)
	data, ok := findEvent(evs, realtime.EventPlayerJoined)
	require.True(t, ok, "room should hear player_joined, got %v", eventTypes(evs))
	pj := data.(realtime.PlayerJoined)
	assert.Equal(t, detail.Game.ID, pj.GameID)
	assert.Equal(t, joined.CurrentPlayerID, pj.Player.ID)
	assert.Equal(t, "Bob", pj.Player.Name)
	assert.Equal(t, 2, pj.CurrentPlayers)
}

// Concurrent joins with the same name: exactly one may win, the rest are
// conflicts, and the roster never carries a duplicate.
func TestConcurrentJoinSameName(t *testing.T) {
	f := newFixture()
	detail := f.createGame(t, "Race", "Hana", 10)
	gameID := detail.Game.ID

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.JoinGame(context.Background(), gameID, "Mallory", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, lobby.KindConflict, lobby.KindOf(err))
		conflicts++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)

	players, err := f.store.ListSeatedPlayers(context.Background(), gameID)
	require.NoError(t, err)
	named := 0
	for _, p := range players {
		if p.Name == "Mallory" {
			named++
		}
	}
	assert.Equal(t, 1, named)
}

// Concurrent joins against the last seats: with the host holding one of four
// seats, six contenders produce exactly three winners.
func TestConcurrentJoinCapacity(t *testing.T) {
	f := newFixture()
	detail := f.createGame(t, "Crowded", "Hana", 4)
	gameID := detail.Game.ID

	const attempts = 6
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.coord.JoinGame(context.Background(), gameID, fmt.Sprintf("player-%d", i), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var wins, rejected int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, lobby.KindValidation, lobby.KindOf(err))
		assert.Equal(t, "game is full", lobby.AsError(err).Message)
		rejected++
	}
	assert.Equal(t, 3, wins)
	assert.Equal(t, 3, rejected)

	seated, err := f.store.CountSeated(context.Background(), gameID)
	require.NoError(t, err)
	assert.Equal(t, 4, seated)
}

func TestGameDetailsMembershipRequired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	detail := f.createGame(t, "Alpha", "Hana", 4)

	_, err := f.coord.GameDetails(ctx, "ZZZZZZ", detail.CurrentPlayerID)
	require.Error(t, err)
	assert.Equal(t, lobby.KindNotFound, lobby.KindOf(err))

	_, err = f.coord.GameDetails(ctx, detail.Game.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, lobby.KindForbidden, lobby.KindOf(err))

	got, err := f.coord.GameDetails(ctx, detail.Game.ID, detail.CurrentPlayerID)
	require.NoError(t, err)
	assert.True(t, got.IsHost)
	assert.Empty(t, got.Ticket, "details reads must not mint tickets")
}

// Every player field surfaced by a broadcast must read back unchanged.
func TestBroadcastPayloadRoundTrip(t *testing.T) {
	f := newFixture()
	detail := f.createGame(t, "Alpha", "Hana", 4)
	hostConn := f.connect(t, detail.Game.ID, detail.CurrentPlayerID)

	joined := f.join(t, detail.Game.ID, "Bob")
	data, ok := findEvent(drain(hostConn), realtime.EventPlayerJoined)
	require.True(t, ok)
	announced := data.(realtime.PlayerJoined).Player

	got, err := f.coord.GameDetails(context.Background(), detail.Game.ID, joined.CurrentPlayerID)
	require.NoError(t, err)
	var fromRead *models.PlayerView
	for i := range got.Players {
		if got.Players[i].ID == announced.ID {
			fromRead = &got.Players[i]
		}
	}
	require.NotNil(t, fromRead)
	assert.Equal(t, announced, *fromRead)
}

func TestKickPlayer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	detail := f.createGame(t, "Alpha", "Hana", 4)
	gameID := detail.Game.ID
	hostID := detail.CurrentPlayerID
	bob := f.join(t, gameID, "Bob")

	hostConn := f.connect(t, gameID, hostID)
	bobConn := f.connect(t, gameID, bob.CurrentPlayerID)
	drain(hostConn)

	// Only the host may kick.
	err := f.coord.KickPlayer(ctx, gameID, bob.CurrentPlayerID, hostID)
	require.Error(t, err)
	assert.Equal(t, lobby.KindForbidden, lobby.KindOf(err))

	// The host is not kickable.
	err = f.coord.KickPlayer(ctx, gameID, hostID, hostID)
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))

	// Unknown target.
	err = f.coord.KickPlayer(ctx, gameID, hostID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, lobby.KindNotFound, lobby.KindOf(err))

	require.NoError(t, f.coord.KickPlayer(ctx, gameID, hostID, bob.CurrentPlayerID))

	data, ok := findEvent(drain(hostConn), realtime.EventPlayerKicked)
	require.True(t, ok)
	kicked := data.(realtime.PlayerKicked)
	assert.Equal(t, bob.CurrentPlayerID, kicked.PlayerID)
	assert.Equal(t, "Bob", kicked.PlayerName)

	p, err := f.store.GetPlayer(ctx, bob.CurrentPlayerID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisconnected, p.Status)
	assert.False(t, f.reg.IsOnline(bob.CurrentPlayerID))
	assert.True(t, bobConn.Closed())
	_, hasLease := f.store.Session(bob.CurrentPlayerID)
	assert.False(t, hasLease)

	// The seat and name are free again.
	rejoin := f.join(t, gameID, "Bob")
	assert.NotEqual(t, bob.CurrentPlayerID, rejoin.CurrentPlayerID)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	detail := f.createGame(t, "Alpha", "Hana", 6)
	gameID := detail.Game.ID
	hostID := detail.CurrentPlayerID
	bob := f.join(t, gameID, "Bob")
	hostConn := f.connect(t, gameID, hostID)

	_, err := f.coord.UpdateSettings(ctx, gameID, bob.CurrentPlayerID, lobby.SettingsPatch{})
	require.Error(t, err)
	assert.Equal(t, lobby.KindForbidden, lobby.KindOf(err))

	name := "Beta"
	language := models.LanguageRU
	password := "s3cret"
	five := 5
	view, err := f.coord.UpdateSettings(ctx, gameID, hostID, lobby.SettingsPatch{
		Name:       &name,
		Password:   &password,
		Language:   &language,
		MaxPlayers: &five,
	})
	require.NoError(t, err)
	assert.Equal(t, "Beta", view.Name)
	assert.Equal(t, models.LanguageRU, view.Language)
	assert.Equal(t, 5, view.MaxPlayers)
	assert.True(t, view.HasPassword)

	data, ok := findEvent(drain(hostConn), realtime.EventSettingsUpdated)
	require.True(t, ok)
	assert.Equal(t, "Beta", data.(realtime.SettingsUpdated).Game.Name)

	// Out-of-range max_players.
	tooSmall := 3
	_, err = f.coord.UpdateSettings(ctx, gameID, hostID, lobby.SettingsPatch{MaxPlayers: &tooSmall})
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))

	// In-range, but below the seated count.
	for _, n := range []string{"P3", "P4", "P5"} {
		_, err := f.coord.JoinGame(ctx, gameID, n, "s3cret")
		require.NoError(t, err)
	}
	four := 4
	_, err = f.coord.UpdateSettings(ctx, gameID, hostID, lobby.SettingsPatch{MaxPlayers: &four})
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))
	assert.Equal(t, "max players cannot be below the current player count", lobby.AsError(err).Message)

	// Empty password clears the guard.
	empty := ""
	view, err = f.coord.UpdateSettings(ctx, gameID, hostID, lobby.SettingsPatch{Password: &empty})
	require.NoError(t, err)
	assert.False(t, view.HasPassword)

	// Settings freeze once the game starts.
	f.startGame(t, detail)
	_, err = f.coord.UpdateSettings(ctx, gameID, hostID, lobby.SettingsPatch{Name: &name})
	require.Error(t, err)
	assert.Equal(t, lobby.KindValidation, lobby.KindOf(err))
}

func TestGameCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := lobby.NewGameCode()
		require.Len(t, code, lobby.GameCodeLength)
		for _, r := range code {
			assert.NotContains(t, "01OI", string(r), "ambiguous characters are excluded")
			assert.Contains(t, "ABCDEFGHJKLMNPQRSTUVWXYZ23456789", string(r))
		}
		seen[code] = true
	}
	// 200 draws from a 32^6 space collide with negligible probability.
	assert.Greater(t, len(seen), 190)
}
