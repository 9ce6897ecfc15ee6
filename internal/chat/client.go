package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	// sendBuffer bounds per-connection outbound queueing; a full buffer
	// marks the connection slow and gets it dropped by the hub.
	sendBuffer = 64
)

// Client is a single authenticated websocket connection. A user may hold
// several at once (one per tab or device); the hub tracks them all.
type Client struct {
	userID  string
	conn    *websocket.Conn
	hub     *Hub
	service *Service

	send      chan []byte
	closeOnce sync.Once

	// sendMu serializes sendError against closeSend. The hub's own
	// deliveries don't need it: SendToUser sends under the hub read lock
	// and closeSend runs under the hub write lock.
	sendMu sync.Mutex
	closed bool
}

func NewClient(userID string, conn *websocket.Conn, hub *Hub, service *Service) *Client {
	return &Client{
		userID:  userID,
		conn:    conn,
		hub:     hub,
		service: service,
		send:    make(chan []byte, sendBuffer),
	}
}

// Run starts both pumps. It returns immediately; the connection lives until
// either pump exits.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// closeSend closes the send channel exactly once, which stops writePump.
// Called by the hub while unregistering.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}

// sendError delivers a message_error to this connection only. Errors from
// one client's actions never reach other connections.
func (c *Client) sendError(detail string) {
	payload, err := json.Marshal(Event{
		Type: EventMessageError,
		Data: map[string]string{"error": detail},
	})
	if err != nil {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.service.Disconnected(c.userID)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("chat: read error for user %s: %v", c.userID, err)
			}
			break
		}

		var evt inboundEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.sendError("malformed event")
			continue
		}
		c.dispatch(evt)
	}
}

func (c *Client) dispatch(evt inboundEvent) {
	switch evt.Type {
	case EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			c.sendError("malformed send_message payload")
			return
		}
		if err := c.service.SendMessage(c.userID, p); err != nil {
			c.sendError(err.Error())
		}
	case EventMarkAsRead:
		var p markReadPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			c.sendError("malformed mark_as_read payload")
			return
		}
		if err := c.service.MarkRead(c.userID, p.MessageID); err != nil {
			c.sendError(err.Error())
		}
	case EventTyping:
		var p typingPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			c.sendError("malformed typing payload")
			return
		}
		c.service.Typing(c.userID, p.ReceiverID, true)
	case EventStopTyping:
		var p typingPayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			c.sendError("malformed stop_typing payload")
			return
		}
		c.service.Typing(c.userID, p.ReceiverID, false)
	case EventServiceRequestUpdated:
		var p requestUpdatePayload
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			c.sendError("malformed service_request_updated payload")
			return
		}
		if err := c.service.RelayRequestUpdate(c.userID, p); err != nil {
			c.sendError(err.Error())
		}
	default:
		c.sendError("unknown event type: " + evt.Type)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
