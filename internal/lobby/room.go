// internal/lobby/room.go
package lobby

import (
	"context"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avagner/summit/internal/auth"
	"github.com/avagner/summit/internal/models"
	"github.com/avagner/summit/internal/realtime"
)

// JoinRoom attaches a live connection to its player's seat: the ticket must
// be bound to exactly this player and game. The joiner gets room_state, the
// rest of the room gets player_joined.
func (c *Coordinator) JoinRoom(ctx context.Context, gameID string, playerID uuid.UUID, ticket string, conn *realtime.Conn) error {
	unlock := c.lockGame(gameID)
	defer unlock()

	game, err := c.loadGame(ctx, gameID)
	if err != nil {
		return err
	}
	player, err := c.store.GetPlayerInGame(ctx, playerID, gameID)
	if err != nil {
		return Internalf(err, "failed to join room")
	}
	if player == nil {
		return NotFoundf("player not found")
	}

	ticketPlayer, ticketGame, err := auth.VerifyRoomTicket(ticket)
	if err != nil || ticketPlayer != playerID || ticketGame != gameID {
		return Unauthorizedf("invalid room ticket")
	}

	now := time.Now().UTC()
	if err := c.store.PairSocket(ctx, playerID, conn.ID, now); err != nil {
		return Internalf(err, "failed to join room")
	}

	if replaced := c.reg.Register(playerID, gameID, conn); replaced != nil {
		c.log.WithFields(logrus.Fields{
			"game_id":   gameID,
			"player_id": playerID,
		}).Debug("replaced previous room connection")
	}

	lease := models.SessionLease{PlayerID: playerID, GameID: gameID, SocketID: conn.ID}
	if err := c.sessions.StoreSession(ctx, lease); err != nil {
		c.log.WithError(err).WithField("player_id", playerID).Warn("failed to store session lease")
	}
	if err := c.sessions.AddOnline(ctx, gameID, playerID); err != nil {
		c.log.WithError(err).WithField("player_id", playerID).Warn("failed to add online member")
	}

	players, err := c.store.ListSeatedPlayers(ctx, gameID)
	if err != nil {
		return Internalf(err, "failed to join room")
	}

	view := models.NewGameView(game, len(players))
	view.HostName = hostName(players)
	c.bus.Send(conn, realtime.RoomState{
		Game:         view,
		Players:      models.NewPlayerViews(players),
		YourPlayerID: playerID,
		IsHost:       player.IsHost,
	})
	c.bus.Broadcast(gameID, realtime.PlayerJoined{
		GameID:         gameID,
		Player:         models.NewPlayerView(player),
		CurrentPlayers: len(players),
	}, conn)

	c.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"player_id": playerID,
		"socket_id": conn.ID,
	}).Info("player joined room")
	return nil
}

// Disconnect tears down whatever the connection holds. Unknown connections
// are a silent no-op, so transport-close races and double closes are safe.
// Cleanup steps never short-circuit each other: the seat, the registry entry,
// the lease and the online-set member all go regardless of which step fails.
func (c *Coordinator) Disconnect(ctx context.Context, conn *realtime.Conn) {
	paired, err := c.store.GetPlayerBySocket(ctx, conn.ID)
	if err != nil {
		c.log.WithError(err).WithField("socket_id", conn.ID).Error("failed to look up disconnecting socket")
	}
	if paired == nil {
		c.reg.DropConn(conn)
		return
	}

	gameID := paired.GameID
	unlock := c.lockGame(gameID)
	defer unlock()

	// Re-check under the lock: the player may have re-paired to a fresh
	// connection while this close was in flight.
	player, err := c.store.GetPlayerBySocket(ctx, conn.ID)
	if err != nil {
		c.log.WithError(err).WithField("socket_id", conn.ID).Error("failed to look up disconnecting socket")
	}
	if player == nil {
		c.reg.DropConn(conn)
		return
	}

	if err := c.store.MarkDisconnected(ctx, player.ID); err != nil {
		c.log.WithError(err).WithField("player_id", player.ID).Error("failed to mark player disconnected")
	}
	c.reg.Unregister(player.ID, conn)
	if err := c.sessions.RemoveSession(ctx, player.ID); err != nil {
		c.log.WithError(err).WithField("player_id", player.ID).Warn("failed to drop session lease")
	}
	if err := c.sessions.RemoveOnline(ctx, gameID, player.ID); err != nil {
		c.log.WithError(err).WithField("player_id", player.ID).Warn("failed to drop online member")
	}
	conn.Close()

	c.bus.Broadcast(gameID, realtime.PlayerDisconnected{
		GameID:     gameID,
		PlayerID:   player.ID,
		PlayerName: player.Name,
	})

	c.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"player_id": player.ID,
	}).Info("player disconnected")
}

// SendMessage persists a chat line and then delivers it: public messages to
// the whole room including the sender, whispers to the target plus a sender
// echo. Offline targets still get the line on their next history read.
func (c *Coordinator) SendMessage(ctx context.Context, gameID string, senderID uuid.UUID, conn *realtime.Conn, body string, targetID *uuid.UUID) error {
	unlock := c.lockGame(gameID)
	defer unlock()

	sender, err := c.store.GetPlayerInGame(ctx, senderID, gameID)
	if err != nil {
		return Internalf(err, "failed to send message")
	}
	if sender == nil || sender.SocketID == nil || *sender.SocketID != conn.ID {
		return Unauthorizedf("not joined to this room")
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return Validationf("message is empty")
	}
	if utf8.RuneCountInString(body) > maxMessageLen {
		return Validationf("message exceeds %d characters", maxMessageLen)
	}

	kind := models.MessagePublic
	if targetID != nil {
		target, err := c.store.GetPlayerInGame(ctx, *targetID, gameID)
		if err != nil {
			return Internalf(err, "failed to send message")
		}
		if target == nil {
			return NotFoundf("target player not found")
		}
		kind = models.MessagePrivate
	}

	now := time.Now().UTC()
	msg := &models.ChatMessage{
		ID:             uuid.New(),
		GameID:         gameID,
		PlayerID:       senderID,
		PlayerName:     sender.Name,
		Body:           body,
		Kind:           kind,
		TargetPlayerID: targetID,
		CreatedAt:      now,
	}
	if err := c.store.InsertMessage(ctx, msg); err != nil {
		return Internalf(err, "failed to send message")
	}
	if err := c.store.TouchPlayer(ctx, senderID, now); err != nil {
		c.log.WithError(err).WithField("player_id", senderID).Warn("failed to touch player activity")
	}

	ev := realtime.NewMessage{Message: *msg}
	if kind == models.MessagePrivate {
		if targetConn, ok := c.reg.Lookup(*targetID); ok {
			c.bus.Send(targetConn, ev)
		}
		c.bus.Send(conn, ev)
		return nil
	}
	c.bus.Broadcast(gameID, ev)
	return nil
}

// UpdatePing records a latency report and shares it with the rest of the
// room. A report from a stale pairing is dropped without error so nothing
// unpersisted ever reaches the room.
func (c *Coordinator) UpdatePing(ctx context.Context, gameID string, playerID uuid.UUID, conn *realtime.Conn, pingMS int) error {
	unlock := c.lockGame(gameID)
	defer unlock()

	matched, err := c.store.SetPing(ctx, playerID, conn.ID, pingMS, time.Now().UTC())
	if err != nil {
		return Internalf(err, "failed to update ping")
	}
	if !matched {
		return nil
	}

	c.bus.Broadcast(gameID, realtime.PingUpdated{
		PlayerID: playerID,
		PingMS:   pingMS,
	}, conn)
	return nil
}

// SetReady flips a player's readiness and tells the room. When every active
// player of a big-enough roster is ready it also raises all_players_ready,
// which is advisory: only the host's explicit start begins the game.
func (c *Coordinator) SetReady(ctx context.Context, gameID string, playerID uuid.UUID, conn *realtime.Conn, isReady bool) error {
	unlock := c.lockGame(gameID)
	defer unlock()

	matched, err := c.store.SetReady(ctx, playerID, conn.ID, isReady, time.Now().UTC())
	if err != nil {
		return Internalf(err, "failed to update readiness")
	}
	if !matched {
		return NotFoundf("player not found")
	}

	c.bus.Broadcast(gameID, realtime.PlayerReadyChanged{
		PlayerID: playerID,
		IsReady:  isReady,
	})

	active, err := c.store.ListActivePlayers(ctx, gameID)
	if err != nil {
		return Internalf(err, "failed to update readiness")
	}
	if len(active) >= models.MinPlayersToStart && allReady(active) {
		c.bus.Broadcast(gameID, realtime.AllPlayersReady{
			GameID:      gameID,
			PlayerCount: len(active),
		})
	}
	return nil
}

// StartGame runs the lobby -> setup transition exactly once: the host deals
// a random permutation of the country catalog to the active roster in join
// order, troops are seeded, ready flags reset, and the setup timer armed.
func (c *Coordinator) StartGame(ctx context.Context, gameID string, playerID uuid.UUID, conn *realtime.Conn) error {
	unlock := c.lockGame(gameID)
	defer unlock()

	game, err := c.loadGame(ctx, gameID)
	if err != nil {
		return err
	}

	caller, err := c.store.GetPlayerInGame(ctx, playerID, gameID)
	if err != nil {
		return Internalf(err, "failed to start game")
	}
	if caller == nil || caller.SocketID == nil || *caller.SocketID != conn.ID || !caller.IsHost {
		return Unauthorizedf("only the host can start the game")
	}

	if game.IsStarted || !models.CanTransition(game.CurrentPhase, models.PhaseSetup) {
		return Validationf("game already started")
	}

	active, err := c.store.ListActivePlayers(ctx, gameID)
	if err != nil {
		return Internalf(err, "failed to start game")
	}
	if len(active) < models.MinPlayersToStart {
		return Validationf("at least %d players are required to start", models.MinPlayersToStart)
	}

	countries := shuffledCountries()
	for i, p := range active {
		country := countries[i]
		p.Country = &country.Name
		p.CountryFlag = &country.Flag
		p.CountryCode = &country.Code
		p.AttackTroops = startingAttackTroops
		p.DefenseTroops = startingDefenseTroops
		p.IsReady = false
	}

	now := time.Now().UTC()
	phaseEnd := now.Add(setupPhaseDuration)
	game.IsStarted = true
	game.StartedAt = &now
	game.CurrentPhase = models.PhaseSetup
	game.PhaseEndTime = &phaseEnd

	if err := c.store.RecordStart(ctx, game, active); err != nil {
		return Internalf(err, "failed to start game")
	}
	if err := c.sessions.SetPhaseTimer(ctx, gameID, models.PhaseSetup, setupPhaseDuration); err != nil {
		c.log.WithError(err).WithField("game_id", gameID).Warn("failed to arm phase timer")
	}

	view := models.NewGameView(game, len(active))
	view.HostName = caller.Name
	c.bus.Broadcast(gameID, realtime.GameStarted{
		Game:    view,
		Players: models.NewPlayerViews(active),
	})

	c.log.WithFields(logrus.Fields{
		"game_id": gameID,
		"players": len(active),
	}).Info("game started")
	return nil
}

func allReady(players []*models.Player) bool {
	for _, p := range players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func shuffledCountries() []models.Country {
	countries := make([]models.Country, len(models.Countries))
	copy(countries, models.Countries)
	rand.Shuffle(len(countries), func(i, j int) {
		countries[i], countries[j] = countries[j], countries[i]
	})
	return countries
}
