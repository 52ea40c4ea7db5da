package http

import (
	"therapy_webapp/internal/config"
	"therapy_webapp/internal/http/handlers"
	"therapy_webapp/internal/http/middleware"
	"therapy_webapp/internal/repository"
	"therapy_webapp/internal/service"
	"therapy_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, cfg *config.Config, version string) {
	healthHandler := handlers.NewHealthHandler(db, version)

	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	sessionRepo := repository.NewSessionRepository(db)
	trialRepo := repository.NewTrialRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)

	linkService := service.NewLinkTokenService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LinkTokenTTL)

	// WebSocket gateway into the game rooms
	registry := ws.NewRegistry(trialRepo, summaryRepo)
	gateway := ws.NewGateway(registry, sessionRepo, linkService)
	r.GET("/ws", gateway.Handle(cfg.AllowedOrigin))

	// одноразовая ссылка входа для ученика + отчёт по партии
	linkHandler := handlers.NewLinkHandler(sessionRepo, linkService, cfg.LinkTokenTTL)
	reportHandler := handlers.NewReportHandler(sessionRepo, trialRepo, summaryRepo)

	v1 := r.Group("/api/v1")
	v1.POST("/sessions/:id/link", middleware.SupervisorAuth(), linkHandler.Issue)
	v1.GET("/sessions/:id/report", middleware.SupervisorAuth(), reportHandler.Get)
}
