package handlers

import (
	"errors"
	"net/http"
	"time"

	"therapy_webapp/internal/http/middleware"
	"therapy_webapp/internal/logger"
	"therapy_webapp/internal/repository"
	"therapy_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

// LinkHandler выдаёт одноразовые ссылки входа для ученика. Ссылку может
// получить только супервизор-владелец сессии.
type LinkHandler struct {
	sessions *repository.SessionRepository
	links    *service.LinkTokenService
	ttl      time.Duration
}

func NewLinkHandler(sessions *repository.SessionRepository, links *service.LinkTokenService, ttl time.Duration) *LinkHandler {
	return &LinkHandler{sessions: sessions, links: links, ttl: ttl}
}

// Issue handles POST /api/v1/sessions/:id/link
func (h *LinkHandler) Issue(c *gin.Context) {
	sessionID := c.Param("id")
	supervisorID := middleware.SupervisorID(c)

	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		logger.Error("session lookup failed", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if sess.SupervisorID != supervisorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another supervisor"})
		return
	}

	token, err := h.links.Issue(c.Request.Context(), sessionID)
	if err != nil {
		logger.Error("link token issue failed", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int64(h.ttl.Seconds()),
	})
}
