package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	maxFrameBytes = 16 * 1024
	writeTimeout  = 10 * time.Second
)

// client is one live transport connection. It holds only the player id;
// session state is resolved through the registry on each use, so a resume
// can rebind identities without dangling references.
type client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	// send is the bounded outbound queue. Overflow closes the connection
	// rather than blocking the room that is broadcasting.
	send chan []byte
	done chan struct{}

	limiter *rate.Limiter

	mu       sync.Mutex
	playerID string
	closed   bool
}

// newClient wraps an accepted websocket connection.
func newClient(conn *websocket.Conn, srv *Server) *client {
	return &client{
		id:      uuid.NewString(),
		conn:    conn,
		srv:     srv,
		send:    make(chan []byte, srv.cfg.SendQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(srv.cfg.InboundRate), srv.cfg.InboundBurst),
	}
}

// PlayerID returns the bound player identity, empty before binding.
func (c *client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// bind sets the player identity this connection speaks for.
func (c *client) bind(playerID string) {
	c.mu.Lock()
	c.playerID = playerID
	c.mu.Unlock()
}

// close tears the connection down once. The pumps exit on their own when
// the underlying conn errors out.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
}

// enqueue serializes and queues a message without ever blocking on I/O. A
// full queue means the client cannot keep up; the connection is closed and
// the session remains for a reconnect.
func (c *client) enqueue(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.srv.log.Errorf("marshal %s message: %v", msg.Type, err)
		return
	}
	select {
	case c.send <- data:
		c.srv.metrics.MessagesSent.Inc()
	default:
		c.srv.log.Warnf("connection %s send queue full, closing", c.id)
		c.srv.metrics.FramesDropped.Inc()
		c.close()
	}
}

// readPump reads frames until the connection dies. The read deadline doubles
// as the heartbeat watchdog: clients ping at least every 25 seconds and any
// frame refreshes the deadline.
func (c *client) readPump() {
	defer func() {
		c.close()
		c.srv.handleDisconnect(c)
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.PingTimeout))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.log.Debugf("connection %s read error: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.PingTimeout))

		if !c.limiter.Allow() {
			c.srv.log.Warnf("connection %s exceeded inbound rate, dropping frame", c.id)
			c.srv.metrics.FramesDropped.Inc()
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames are logged and dropped, never fatal.
			c.srv.log.Warnf("connection %s sent malformed frame: %v", c.id, err)
			c.enqueue(errorMsg("malformed message"))
			continue
		}

		c.srv.metrics.MessagesReceived.Inc()
		c.srv.handleMessage(c, &msg)
	}
}

// writePump drains the outbound queue onto the wire.
func (c *client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
