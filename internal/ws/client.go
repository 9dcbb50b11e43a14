package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"chronicle-chat/backend/internal/chat"
	"chronicle-chat/backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

var errSendBufferFull = errors.New("send buffer full")

// Envelope is one inbound frame: an intent kind plus its raw payload.
type Envelope struct {
	Type    chat.IntentKind `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one websocket connection. Outbound events are queued on a
// buffered channel drained by the write pump, so the coordinator never
// blocks on a slow peer.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan chat.Event
	coord   *chat.Coordinator
	log     *logger.Logger
	limiter *rate.Limiter
}

// Send queues an event for delivery. It fails immediately when the buffer is
// full instead of blocking the broadcast.
func (c *Client) Send(ev chat.Event) error {
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

// ReadPump reads intents until the connection drops, then detaches the
// connection from the coordinator.
func (c *Client) ReadPump() {
	defer func() {
		c.coord.Disconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "error", err.Error())
			}
			return
		}

		if !c.limiter.Allow() {
			c.log.Warn("intent rate limit exceeded, frame dropped")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("malformed frame dropped", "error", err.Error())
			continue
		}
		c.dispatch(env)
	}
}

// dispatch decodes and validates the payload for the tagged intent kind, then
// hands the typed intent to the coordinator. Invalid payloads and unknown
// kinds are dropped at this boundary.
func (c *Client) dispatch(env Envelope) {
	switch env.Type {
	case chat.IntentJoin:
		var p chat.JoinPayload
		if c.decode(env, &p) {
			c.coord.Join(c.id, p)
		}
	case chat.IntentSendMessage:
		var p chat.SendMessagePayload
		if c.decode(env, &p) {
			c.coord.SendMessage(c.id, p)
		}
	case chat.IntentSendFile:
		var p chat.SendFilePayload
		if c.decode(env, &p) {
			c.coord.SendFile(c.id, p)
		}
	case chat.IntentEditMessage:
		var p chat.EditMessagePayload
		if c.decode(env, &p) {
			c.coord.EditMessage(c.id, p)
		}
	case chat.IntentRollDice:
		var p chat.RollDicePayload
		if c.decode(env, &p) {
			c.coord.RollDice(c.id, p)
		}
	case chat.IntentUpdateProfile:
		var p chat.UpdateProfilePayload
		if c.decode(env, &p) {
			c.coord.UpdateProfile(c.id, p)
		}
	case chat.IntentLogout:
		c.coord.Logout(c.id)
	default:
		c.log.Warn("unknown intent kind dropped", "kind", string(env.Type))
	}
}

func (c *Client) decode(env Envelope, payload any) bool {
	if err := chat.DecodePayload(env.Payload, payload); err != nil {
		c.log.Warn("invalid intent payload dropped", "kind", string(env.Type), "error", err.Error())
		return false
	}
	return true
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
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
