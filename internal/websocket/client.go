package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Command is an inbound client frame: select/deselect the live chat, or end
// the session.
type Command struct {
	Type   string     `json:"type"` // "subscribe" | "unsubscribe" | "sign_out"
	ChatId *uuid.UUID `json:"chat_id,omitempty"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	UserID uuid.UUID

	// Buffered channel of outbound frames.
	Send chan []byte

	// Parsed inbound commands, consumed by the connection handler.
	Commands chan Command

	// Closed when the connection handler stops consuming Commands.
	done <-chan struct{}
}

// deliver hands a parsed command to the connection handler. It reports false
// once the handler is gone, so readPump never parks on a full buffer that
// nobody drains anymore.
func (c *Client) deliver(cmd Command) bool {
	select {
	case c.Commands <- cmd:
		return true
	case <-c.done:
		return false
	}
}

// readPump pumps commands from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		close(c.Commands)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.Hub.logger.Warn("Client", "Bad command frame", map[string]interface{}{
				"user_id": c.UserID,
				"error":   err.Error(),
			})
			continue
		}
		if !c.deliver(cmd) {
			break
		}
	}
}

// writePump pumps frames from the handler to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued frames into the same websocket message.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
