// Package carrier implements the Frame Carrier spec.md §1 and §4.3
// name: the transport-facing half of each client connection, built on
// gorilla/websocket the way the teacher's internal/signaling package
// uses it. Unlike the teacher's signaling server, which invokes its
// offer/close callbacks directly from per-connection goroutines, every
// carrier event here is funneled through one channel so the
// single-threaded scheduler (spec.md §5) is the only reader and never
// needs its own locking.
package carrier

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventKind discriminates the entries on a Carrier's Events channel.
type EventKind int

const (
	EventOpen EventKind = iota
	EventClose
	EventMessage
)

// Event is one occurrence the event loop must react to: a new
// connection, a closed one, or an inbound message on an existing one.
type Event struct {
	Kind         EventKind
	ConnectionID uint64
	SessionID    string // set on EventOpen only
	Payload      []byte // set on EventMessage only
}

// Carrier owns every live WebSocket connection and serializes their
// open/close/message occurrences onto a single channel. QueueFrame is
// the only method that crosses back from the scheduler into a
// connection's own write goroutine, and it never blocks.
type Carrier struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	maxFrameBytes int
	maxQueueBytes int

	events chan Event
	nextID atomic.Uint64

	mu    sync.RWMutex
	conns map[uint64]*connection
}

type connection struct {
	id    uint64
	ws    *websocket.Conn
	send  chan []byte
	log   *zap.Logger
	queue atomic.Int64 // bytes currently enqueued, not yet written

	closeOnce sync.Once
}

// Config bundles the carrier's construction-time limits, sourced from
// spec.md §6's max_ws_frame_b / max_ws_queue_b configuration keys.
type Config struct {
	Logger        *zap.Logger
	MaxFrameBytes int
	MaxQueueBytes int
	EventBuffer   int
}

// New builds a Carrier ready to accept upgrades via HandleWebSocket.
func New(cfg Config) *Carrier {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	return &Carrier{
		log:           cfg.Logger,
		maxFrameBytes: cfg.MaxFrameBytes,
		maxQueueBytes: cfg.MaxQueueBytes,
		events:        make(chan Event, cfg.EventBuffer),
		conns:         make(map[uint64]*connection),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Events returns the channel the event loop selects on.
func (c *Carrier) Events() <-chan Event { return c.events }

// HandleWebSocket upgrades an inbound HTTP request and registers the
// resulting connection, assigning it the next connection id and
// emitting EventOpen. Mount this as the handler for the streaming
// endpoint.
func (c *Carrier) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := c.nextID.Add(1)
	sessionID := uuid.NewString()
	conn := &connection{
		id:   id,
		ws:   ws,
		send: make(chan []byte, 64),
		log:  c.log.With(zap.Uint64("connection_id", id), zap.String("session_id", sessionID)),
	}

	c.mu.Lock()
	c.conns[id] = conn
	c.mu.Unlock()

	go c.writePump(conn)
	go c.readPump(conn)

	c.events <- Event{Kind: EventOpen, ConnectionID: id, SessionID: sessionID}
}

func (c *Carrier) readPump(conn *connection) {
	defer c.unregister(conn)

	for {
		_, payload, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				conn.log.Debug("carrier read error", zap.Error(err))
			}
			return
		}
		c.events <- Event{Kind: EventMessage, ConnectionID: conn.id, Payload: payload}
	}
}

func (c *Carrier) writePump(conn *connection) {
	defer conn.ws.Close()

	for frame := range conn.send {
		conn.queue.Add(-int64(len(frame)))
		conn.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			conn.log.Debug("carrier write error", zap.Error(err))
			return
		}
	}
}

func (c *Carrier) unregister(conn *connection) {
	c.mu.Lock()
	_, existed := c.conns[conn.id]
	delete(c.conns, conn.id)
	c.mu.Unlock()
	if !existed {
		return
	}
	conn.closeOnce.Do(func() { close(conn.send) })
	c.events <- Event{Kind: EventClose, ConnectionID: conn.id}
}

// QueueFrame enqueues frame for connectionID without blocking. It
// returns ok=false, dropping the frame, when the connection is gone,
// when the frame would push its queued bytes past the queue-byte cap,
// or when the connection's send buffer is full. A frame longer than
// max_ws_frame_b is rejected with an error.
func (c *Carrier) QueueFrame(connectionID uint64, frame []byte) (ok bool, err error) {
	if c.maxFrameBytes > 0 && len(frame) > c.maxFrameBytes {
		return false, fmt.Errorf("carrier: frame of %d bytes exceeds max_ws_frame_b", len(frame))
	}

	c.mu.RLock()
	conn, exists := c.conns[connectionID]
	c.mu.RUnlock()
	if !exists {
		return false, nil
	}

	if c.maxQueueBytes > 0 && conn.queue.Load()+int64(len(frame)) > int64(c.maxQueueBytes) {
		return false, nil
	}

	select {
	case conn.send <- frame:
		conn.queue.Add(int64(len(frame)))
		return true, nil
	default:
		return false, nil
	}
}

// QueueSize returns the number of bytes currently enqueued for
// connectionID — the quantity the scheduler compares against
// max_ws_queue_b.
func (c *Carrier) QueueSize(connectionID uint64) (int, bool) {
	c.mu.RLock()
	conn, exists := c.conns[connectionID]
	c.mu.RUnlock()
	if !exists {
		return 0, false
	}
	return int(conn.queue.Load()), true
}

// Close force-closes a connection from the server side, e.g. after a
// protocol error (spec.md §7).
func (c *Carrier) Close(connectionID uint64) error {
	c.mu.RLock()
	conn, exists := c.conns[connectionID]
	c.mu.RUnlock()
	if !exists {
		return fmt.Errorf("carrier: connection %d not found", connectionID)
	}
	return conn.ws.Close()
}

// CloseAll force-closes every live connection, used on shutdown.
func (c *Carrier) CloseAll() {
	c.mu.RLock()
	conns := make([]*connection, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.RUnlock()
	for _, conn := range conns {
		conn.ws.Close()
	}
}
