package handlers

import (
	"errors"
	"net/http"

	"therapy_webapp/internal/http/middleware"
	"therapy_webapp/internal/logger"
	"therapy_webapp/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// ReportHandler отдаёт супервизору итоги партии: снимок игры и список
// попыток в порядке их номеров.
type ReportHandler struct {
	sessions  *repository.SessionRepository
	trials    *repository.TrialRepository
	summaries *repository.SummaryRepository
}

func NewReportHandler(sessions *repository.SessionRepository, trials *repository.TrialRepository, summaries *repository.SummaryRepository) *ReportHandler {
	return &ReportHandler{sessions: sessions, trials: trials, summaries: summaries}
}

// Get handles GET /api/v1/sessions/:id/report
func (h *ReportHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")
	supervisorID := middleware.SupervisorID(c)

	owned, err := h.sessions.OwnedBy(c.Request.Context(), sessionID, supervisorID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		logger.Error("session lookup failed", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !owned {
		c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another supervisor"})
		return
	}

	summary, err := h.summaries.GetBySession(c.Request.Context(), sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		// партия ещё не начиналась
		summary = nil
	} else if err != nil {
		logger.Error("summary lookup failed", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	trials, err := h.trials.ListBySession(c.Request.Context(), sessionID, 0)
	if err != nil {
		logger.Error("trials lookup failed", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"summary":    summary,
		"trials":     trials,
	})
}
