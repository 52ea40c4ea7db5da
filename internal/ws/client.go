package ws

import (
	"sync"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

// Client - одно живое подключение участника. Читающая горутина передаёт
// кадры в цикл комнаты; пишущая забирает их из Send.
type Client struct {
	Role      domain.Role
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	room      *Room
	closeOnce sync.Once
}

func NewClient(role domain.Role, sessionID string, conn *websocket.Conn, room *Room) *Client {
	return &Client{
		Role:      role,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		room:      room,
	}
}

// Run starts the pumps and blocks until the connection is gone.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.room.Detach(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read closed", "session", c.SessionID, "role", c.Role, "error", err)
			}
			return
		}
		c.room.Inbound(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write failed", "session", c.SessionID, "role", c.Role, "error", err)
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

// CloseWithCode sends a close control frame with a policy code, then closes.
func (c *Client) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		if c.Conn != nil {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = c.Conn.Close()
		}
	})
}

// Close tears the connection down without a policy code.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// deliver queues a frame for the write pump, dropping it if the client
// cannot keep up. Undelivered broadcasts are not queued elsewhere.
func (c *Client) deliver(msg []byte) {
	select {
	case c.Send <- msg:
	default:
		logger.Warn("ws send buffer full, dropping frame", "session", c.SessionID, "role", c.Role)
	}
}
