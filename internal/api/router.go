package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/api/handlers"
	"github.com/privacychecker/audit-core/internal/api/middleware"
	"github.com/privacychecker/audit-core/internal/config"
)

type Server struct {
	Config  *config.Config
	Router  *gin.Engine
	handler *handlers.Handler
}

func NewServer(cfg *config.Config, handler *handlers.Handler, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Config:  cfg,
		Router:  router,
		handler: handler,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", handlers.HealthCheck)

	api := s.Router.Group("/api/v1")
	if !s.Config.Auth.Disabled {
		api.Use(middleware.AuthRequired(s.Config.Auth.JWTSecret))
	}

	{
		api.POST("/scans", s.handler.SubmitScan)
		api.POST("/scans/sync", s.handler.ProcessScanSync)
		api.GET("/audits/:domain", s.handler.GetLatestAudit)
		api.GET("/audits/:domain/history", s.handler.GetAuditHistory)
		api.GET("/audits/:domain/drift", s.handler.GetDriftReport)
		api.GET("/email/:domain", s.handler.GetEmailGrade)
	}
}
