package hub

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
)

const (
	// sendQueueSize bounds the per-client buffer; a client that cannot keep
	// up loses events rather than stalling the registry.
	sendQueueSize = 64

	writeWait  = 10 * time.Second
	pingPeriod = 45 * time.Second
)

// Client wraps one websocket connection. All outbound traffic goes through
// the send queue so writes stay on a single goroutine.
type Client struct {
	conn *websocket.Conn
	send chan session.Event
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan session.Event, sendQueueSize),
	}
}

func (c *Client) enqueue(evt session.Event) {
	select {
	case c.send <- evt:
	default:
		dropLog(evt)
	}
}

// Send queues an event for this connection only, e.g. a direct error reply.
func (c *Client) Send(evt session.Event) {
	c.enqueue(evt)
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings. It returns when the hub closes the queue or a write
// fails, and closes the underlying connection on the way out.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
