// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/middleware"
	"github.com/avagner/summit/internal/realtime"
)

// roomSubprotocol is the WebSocket subprotocol clients must speak.
const roomSubprotocol = "summit"

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	wsPingTimeout  = 15 * time.Second
)

// roomMessage is the inbound frame on the room socket. Type selects the
// operation; the other fields are read per operation.
type roomMessage struct {
	Type           string     `json:"type"`
	PlayerID       uuid.UUID  `json:"player_id,omitempty"`
	Ticket         string     `json:"ticket,omitempty"`
	Body           string     `json:"body,omitempty"`
	TargetPlayerID *uuid.UUID `json:"target_player_id,omitempty"`
	PingMS         int        `json:"ping_ms,omitempty"`
	IsReady        bool       `json:"is_ready,omitempty"`
}

// handleRoomWS upgrades the connection and runs the room socket: a write pump
// draining the connection's outbound queue and a read loop dispatching inbound
// operations to the coordinator. Transport close, however detected, ends in
// exactly one Disconnect.
// GET /api/rooms/ws/{gameID}
func (s *Server) handleRoomWS(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{roomSubprotocol},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.log.Warnf("websocket accept error for game %s: %v", gameID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != roomSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the summit subprotocol")
		return
	}

	exists, err := s.coord.GameExists(r.Context(), gameID)
	if err != nil {
		s.log.WithError(err).WithField("game_id", gameID).Error("room handshake failed")
		c.Close(HandshakeError, "failed to validate game")
		return
	}
	if !exists {
		c.Close(InvalidGameIDError, "game does not exist")
		return
	}

	middleware.LogWebSocketConnect(s.log, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := realtime.NewConn(cancel)

	go s.writePump(ctx, c, conn)
	s.readPump(ctx, c, conn, gameID)

	// The read loop is done: the transport is gone or the connection was
	// replaced. Disconnect is idempotent either way.
	s.coord.Disconnect(context.Background(), conn)
	middleware.LogWebSocketDisconnect(s.log, r.RemoteAddr, r.URL.Path, nil)
}

// readPump reads frames until the transport dies and routes each one to the
// coordinator. Operation failures become error events on this connection;
// they never end the session.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *realtime.Conn, gameID string) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
			case strings.Contains(err.Error(), "context canceled"):
			default:
				s.log.WithField("game_id", gameID).Debugf("room socket read error: %v", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg roomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.bus.SendError(conn, "validation", "invalid JSON")
			continue
		}
		s.dispatch(ctx, conn, gameID, msg)
	}
}

// dispatch routes one inbound frame. join_room authenticates with the room
// ticket; everything after that authenticates by socket pairing inside the
// coordinator.
func (s *Server) dispatch(ctx context.Context, conn *realtime.Conn, gameID string, msg roomMessage) {
	var err error
	switch msg.Type {
	case "join_room":
		err = s.coord.JoinRoom(ctx, gameID, msg.PlayerID, msg.Ticket, conn)
	case "chat":
		err = s.coord.SendMessage(ctx, gameID, msg.PlayerID, conn, msg.Body, msg.TargetPlayerID)
	case "ping":
		err = s.coord.UpdatePing(ctx, gameID, msg.PlayerID, conn, msg.PingMS)
	case "ready":
		err = s.coord.SetReady(ctx, gameID, msg.PlayerID, conn, msg.IsReady)
	case "start_game":
		err = s.coord.StartGame(ctx, gameID, msg.PlayerID, conn)
	default:
		s.bus.SendError(conn, "validation", "unknown message type: "+msg.Type)
		return
	}
	if err != nil {
		e := lobby.AsError(err)
		if e.Kind == lobby.KindInternal {
			s.log.WithError(e).WithFields(map[string]any{
				"game_id": gameID,
				"type":    msg.Type,
			}).Error("room operation failed")
		}
		s.bus.SendError(conn, e.Code(), e.Message)
	}
}

// writePump drains the connection's outbound queue onto the wire and pings on
// an interval. The queue closing is the only clean exit: closing a connection
// cancels ctx at the same instant, and racing the two would drop whatever is
// still queued, including the event telling the client why it is being closed.
// Writes therefore run on their own deadline so queued events flush even after
// cancellation; a dead transport fails the write or the ping and ends the pump.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *realtime.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer conn.Close()
	defer c.Close(websocket.StatusGoingAway, "write pump stopped")

	for {
		select {
		case env, ok := <-conn.Out():
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				s.log.WithError(err).WithField("event", env.Type).Warn("failed to marshal room event")
				continue
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsPingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
