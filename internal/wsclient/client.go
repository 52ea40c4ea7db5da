package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/logger"
	"therapy_webapp/internal/ws"

	"github.com/gorilla/websocket"
)

var (
	ErrClosed       = errors.New("client closed")
	ErrNotConnected = errors.New("not connected")
	ErrRetriesSpent = errors.New("reconnect attempts exhausted")
	ErrPolicyClose  = errors.New("connection refused by server policy")
)

// Handler получает сообщение сервера подписанного типа
type Handler func(msg ws.Message)

type Config struct {
	URL       string // базовый ws:// адрес эндпоинта
	SessionID string
	Role      domain.Role
	Token     string // одноразовая ссылка ученика; после первого входа сервер заменяет её credential'ом переподключения
	Cookie    string // значение cookie супервизора

	MaxRetries int
	RetryBase  time.Duration
}

// Client - обёртка подключения на стороне участника: подключается, шлёт
// join-game, кэширует последний game-state и раздаёт сообщения подписчикам
// по типу. При аварийном обрыве переподключается с экспоненциальной
// задержкой; после policy close code или явного Close не переподключается.
type Client struct {
	// mu стережёт conn (переподключение подменяет его из читающей
	// горутины), cfg.Token, подписки и кэш состояния
	mu       sync.RWMutex
	cfg      Config
	conn     *websocket.Conn
	handlers map[string][]Handler
	state    json.RawMessage

	closed chan struct{}
	once   sync.Once
}

func New(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}

	return &Client{
		cfg:      cfg,
		handlers: make(map[string][]Handler),
		closed:   make(chan struct{}),
	}
}

// Subscribe registers a handler for a server message type.
func (c *Client) Subscribe(msgType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = append(c.handlers[msgType], h)
}

// State returns the latest full game-state payload received.
func (c *Client) State() json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect dials the server, joins the session and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}
	go c.readLoop(ctx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("bad url: %w", err)
	}
	q := u.Query()
	q.Set("session", cfg.SessionID)
	q.Set("role", string(cfg.Role))
	if cfg.Token != "" {
		q.Set("token", cfg.Token)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if cfg.Cookie != "" {
		header.Set("Cookie", ws.SupervisorCookie+"="+cfg.Cookie)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return c.Send(ws.MsgJoinGame, map[string]any{
		"therapySessionId": cfg.SessionID,
		"role":             string(cfg.Role),
	})
}

// Send marshals an envelope with this participant's role and sends it.
func (c *Client) Send(msgType string, payload any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.mu.RLock()
	conn := c.conn
	role := c.cfg.Role
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(ws.Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Player:    role,
	})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close is user-initiated: the read loop exits without reconnecting.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		}
	})
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}

			if isPolicyClose(err) {
				// policy rejections are terminal for this attempt
				logger.Warn("connection refused by policy", "session", c.cfg.SessionID, "role", c.cfg.Role, "error", err)
				return
			}

			if rerr := c.reconnect(ctx); rerr != nil {
				logger.Error("reconnect failed", "session", c.cfg.SessionID, "role", c.cfg.Role, "error", rerr)
				return
			}
			// сервер в ответ на повторный join пришлёт полный game-state -
			// это единственный механизм ресинхронизации
			continue
		}

		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var msg ws.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warn("bad server frame", "error", err)
		return
	}

	c.mu.Lock()
	switch msg.Type {
	case ws.MsgGameState:
		c.state = msg.Payload

	case ws.MsgSessionCredential:
		// ссылка погашена сервером; дальше подключаемся по этому credential
		var p struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err == nil && p.Token != "" {
			c.cfg.Token = p.Token
		}
	}
	handlers := append([]Handler(nil), c.handlers[msg.Type]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		delay := retryDelay(c.cfg.RetryBase, attempt)
		logger.Info("reconnecting", "session", c.cfg.SessionID, "attempt", attempt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-c.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := c.dial(ctx); err == nil {
			return nil
		}
	}
	return ErrRetriesSpent
}

// retryDelay doubles the base delay per attempt: base, 2*base, 4*base...
func retryDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

// isPolicyClose reports whether the close code is in the gateway's policy
// range (4000-4005); those must not trigger auto-retry.
func isPolicyClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code >= ws.CloseInternalError && ce.Code <= ws.CloseSuperseded
	}
	return false
}
