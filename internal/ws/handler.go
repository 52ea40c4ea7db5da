package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/game"
	"therapy_webapp/internal/logger"
	"therapy_webapp/internal/repository"
	"therapy_webapp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SupervisorCookie - cookie с JWT, который основное приложение ставит
// супервизору при входе.
const SupervisorCookie = "st_session"

type SessionSource interface {
	GetByID(ctx context.Context, id string) (*domain.TherapySession, error)
}

type LinkRedeemer interface {
	Redeem(ctx context.Context, token, sessionID string) error
	GrantRejoin(ctx context.Context, sessionID string) (string, error)
	CheckRejoin(ctx context.Context, token, sessionID string) error
}

// Gateway терминирует upgrade, разрешает личность и роль и только после
// этого отдаёт подключение комнате. Любой отказ - жёсткий: policy close
// code и никакого частичного attach. Роль из query без подтверждающего
// credential не принимается.
type Gateway struct {
	registry *Registry
	sessions SessionSource
	links    LinkRedeemer

	// подменяется в тестах
	parseToken func(string) (int64, error)
}

func NewGateway(registry *Registry, sessions SessionSource, links LinkRedeemer) *Gateway {
	return &Gateway{
		registry:   registry,
		sessions:   sessions,
		links:      links,
		parseToken: service.ParseJWT,
	}
}

func (g *Gateway) Handle(allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "error", err)
			return
		}

		sessionID := c.Query("session")
		role := domain.Role(c.Query("role"))

		player, rejoin, code, reason := g.admit(c, conn, sessionID, role)
		if player == nil {
			ConnectionsRejected.WithLabelValues(reason).Inc()
			logger.Warn("ws attach rejected", "session", sessionID, "role", role, "reason", reason)
			closeWith(conn, code, reason)
			return
		}

		// свежепогашенная ссылка: отдаём ученику credential переподключения
		if rejoin != "" {
			if data, err := marshalEnvelope(MsgSessionCredential, map[string]string{"token": rejoin}); err == nil {
				player.deliver(data)
			}
		}

		go player.Run()
	}
}

// admit validates credentials and attaches the connection to its room.
// On failure it returns a nil player with the policy close code to use.
// For a learner joining on a fresh link it also returns the rejoin
// credential to hand back to the client.
func (g *Gateway) admit(c *gin.Context, conn *websocket.Conn, sessionID string, role domain.Role) (*Client, string, int, string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if sessionID == "" {
		return nil, "", CloseBadSession, "session is required"
	}
	if !role.Valid() {
		return nil, "", CloseBadRole, "role must be supervisor or learner"
	}

	sess, err := g.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, "", CloseBadSession, "session not found"
	}
	if err != nil {
		logger.Error("session lookup failed", "session", sessionID, "error", err)
		return nil, "", CloseInternalError, "internal error"
	}

	var rejoin string

	switch role {
	case domain.RoleSupervisor:
		cookie, err := c.Cookie(SupervisorCookie)
		if err != nil {
			return nil, "", CloseBadCredential, "missing supervisor credential"
		}
		supervisorID, err := g.parseToken(cookie)
		if err != nil {
			return nil, "", CloseBadCredential, "invalid supervisor credential"
		}
		if sess.SupervisorID != supervisorID {
			return nil, "", CloseNotOwner, "session belongs to another supervisor"
		}

	case domain.RoleLearner:
		token := c.Query("token")
		if token == "" {
			return nil, "", CloseBadCredential, "missing join token"
		}
		switch err := g.links.Redeem(ctx, token, sessionID); {
		case err == nil:
			// первый вход по ссылке: ссылка гаснет, взамен выдаём
			// credential переподключения на эту сессию
			granted, gerr := g.links.GrantRejoin(ctx, sessionID)
			if gerr != nil {
				logger.Error("rejoin grant failed", "session", sessionID, "error", gerr)
				return nil, "", CloseInternalError, "internal error"
			}
			rejoin = granted

		case errors.Is(err, service.ErrLinkTokenInvalid):
			// не свежая ссылка - может быть, credential переподключения
			if cerr := g.links.CheckRejoin(ctx, token, sessionID); cerr != nil {
				if errors.Is(cerr, service.ErrLinkTokenInvalid) {
					return nil, "", CloseBadCredential, "join token invalid or already used"
				}
				logger.Error("rejoin check failed", "session", sessionID, "error", cerr)
				return nil, "", CloseInternalError, "internal error"
			}

		default:
			logger.Error("link token redeem failed", "session", sessionID, "error", err)
			return nil, "", CloseInternalError, "internal error"
		}
	}

	room, err := g.registry.GetOrCreate(sessionID, game.Type(sess.GameType))
	if err != nil {
		logger.Error("room create failed", "session", sessionID, "error", err)
		return nil, "", CloseInternalError, "internal error"
	}

	player := NewClient(role, sessionID, conn, room)
	if err := room.Attach(player); err != nil {
		// комната успела закрыться между GetOrCreate и Attach
		room, err = g.registry.GetOrCreate(sessionID, game.Type(sess.GameType))
		if err != nil {
			return nil, "", CloseInternalError, "internal error"
		}
		player = NewClient(role, sessionID, conn, room)
		if err := room.Attach(player); err != nil {
			return nil, "", CloseInternalError, "internal error"
		}
	}

	return player, rejoin, 0, ""
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
