// internal/realtime/conn.go
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// outChanSize bounds a connection's outbound queue. A member this far behind
// is treated as unresponsive and dropped rather than allowed to stall its
// room.
const outChanSize = 16

// Conn is one client's live connection to a room. ID is the opaque handle
// paired with players.socket_id; everything pushed to the client goes through
// the bounded outbound queue drained by the transport's write pump.
type Conn struct {
	ID string

	mu     sync.Mutex
	closed bool
	out    chan Envelope
	cancel context.CancelFunc
}

// NewConn allocates a connection with a fresh handle. cancel, when non-nil,
// tears down the transport read loop on Close.
func NewConn(cancel context.CancelFunc) *Conn {
	return &Conn{
		ID:     uuid.NewString(),
		out:    make(chan Envelope, outChanSize),
		cancel: cancel,
	}
}

// Out is the outbound queue. The channel is closed when the connection is.
func (c *Conn) Out() <-chan Envelope { return c.out }

// Write enqueues an event without blocking. It reports false when the
// connection is closed or its queue is full; callers decide whether that
// means dropping the member.
func (c *Conn) Write(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- Envelope{Type: ev.EventType(), Data: ev}:
		return true
	default:
		return false
	}
}

// Close shuts the outbound queue and cancels the read loop. Safe to call more
// than once and concurrently with Write.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.out)
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
