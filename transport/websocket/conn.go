package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound frames queued per connection before sends start failing.
	sendQueueSize = 256
)

// ErrSendQueueFull is returned when a connection's outbound queue is full,
// which means the client has stopped draining its socket.
var ErrSendQueueFull = errors.New("websocket: send queue full")

// ErrConnClosed is returned by Send after the connection has been closed.
var ErrConnClosed = errors.New("websocket: connection closed")

// Conn is one client connection. It implements lobby.Conn.
type Conn struct {
	id      string
	ws      *websocket.Conn
	handler Handler
	log     *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(id string, ws *websocket.Conn, handler Handler, log *slog.Logger) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, sendQueueSize),
		handler: handler,
		log:     log,
	}
}

// ID returns the connection handle.
func (c *Conn) ID() string { return c.id }

// Send queues a frame for the write pump. It never blocks: a full queue
// fails the send and the slow client gets dropped by its pumps.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops the connection by closing the send queue. The write pump
// drains frames queued before the close, writes the close frame, and only
// then tears the socket down, so a reply queued right before Close still
// reaches the client.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// start runs the pumps and the open callback.
func (c *Conn) start() {
	go c.writePump()
	go c.readPump()
	c.handler.HandleOpen(c)
}

// readPump delivers inbound frames to the dispatcher. Frames for one
// connection are handled strictly in order because this is the only reader.
func (c *Conn) readPump() {
	defer func() {
		c.handler.HandleClose(c)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug("read error", "connection", c.id, "error", err)
			}
			return
		}
		if c.isClosed() {
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Warn("binary frame received, dropping connection", "connection", c.id)
			return
		}
		c.handler.HandleMessage(c, data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
// It owns the underlying socket: the pump closes it on the way out, which
// unblocks the read pump.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
