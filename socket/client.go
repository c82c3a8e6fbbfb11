package socket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendBufferSize bounds the per-connection outbound queue. A full
	// buffer drops the event rather than stalling the broker; the client
	// recovers by fetching on reconnect.
	sendBufferSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Client is one live realtime connection for an authenticated user. A user
// may hold several at once (multiple tabs); each gets its own handle.
type Client struct {
	ID     string
	UserID string

	conn   *websocket.Conn
	send   chan Event
	broker *Broker
	once   sync.Once
}

// enqueue queues an event for delivery, dropping it when the connection
// cannot keep up. Called only while the broker lock is held, which is what
// preserves per-conversation publish order on the channel.
func (c *Client) enqueue(event Event) {
	select {
	case c.send <- event:
	default:
		log.Printf("⚠️ Dropping %s event for slow connection %s", event.Type, c.ID)
	}
}

// disconnect tears the connection down exactly once, whichever loop fails
// first.
func (c *Client) disconnect() {
	c.once.Do(func() {
		c.broker.Leave(c)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readLoop consumes inbound events until the connection drops.
func (c *Client) readLoop() {
	defer c.disconnect()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var event Event
		if err := c.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Read error on connection %s: %v", c.ID, err)
			}
			return
		}
		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Type {
	case EventSubscribe:
		c.broker.Subscribe(context.Background(), c, event.ConversationIDs)
	case EventTyping:
		c.broker.PublishTyping(event.ConversationID, c.UserID)
	case EventStopTyping:
		c.broker.PublishStopTyping(event.ConversationID, c.UserID)
	default:
		log.Printf("⚠️ Unknown event type %q from connection %s", event.Type, c.ID)
	}
}

// writeLoop pushes queued events and keepalive pings to the peer.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.disconnect()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
