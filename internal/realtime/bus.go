// internal/realtime/bus.go
package realtime

import (
	"github.com/sirupsen/logrus"
)

// Bus fans events out to room members. Delivery to one member never blocks or
// aborts delivery to the rest: writes go to bounded per-connection queues,
// and a member that cannot keep up is logged and evicted from the registry
// asynchronously instead of stalling the room.
type Bus struct {
	reg *Registry
	log *logrus.Logger
}

// NewBus wires a bus over the registry.
func NewBus(reg *Registry, log *logrus.Logger) *Bus {
	return &Bus{reg: reg, log: log}
}

// Broadcast delivers the event to the room's registry membership as of this
// call, minus the excluded connections. Per-room delivery order is the order
// of Broadcast calls, so callers serializing a game's mutations get totally
// ordered rooms for free.
func (b *Bus) Broadcast(gameID string, ev Event, exclude ...*Conn) {
	members := b.reg.Members(gameID)
	for _, conn := range members {
		if excluded(conn, exclude) {
			continue
		}
		if !conn.Write(ev) {
			b.evict(gameID, conn, ev)
		}
	}
}

// Send delivers the event to a single connection.
func (b *Bus) Send(conn *Conn, ev Event) {
	if conn == nil {
		return
	}
	if !conn.Write(ev) {
		b.evict("", conn, ev)
	}
}

// SendError reports a failed live operation to the offending connection.
func (b *Bus) SendError(conn *Conn, code, message string) {
	b.Send(conn, ErrorEvent{Code: code, Message: message})
}

// evict logs the failed write and invalidates the connection off the hot
// path. DropConn also closes the connection.
func (b *Bus) evict(gameID string, conn *Conn, ev Event) {
	b.log.WithFields(logrus.Fields{
		"game_id":   gameID,
		"socket_id": conn.ID,
		"event":     ev.EventType(),
	}).Warn("dropping unresponsive room connection")
	go b.reg.DropConn(conn)
}

func excluded(conn *Conn, exclude []*Conn) bool {
	for _, ex := range exclude {
		if ex == conn {
			return true
		}
	}
	return false
}
