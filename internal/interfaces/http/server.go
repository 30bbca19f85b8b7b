// Package http provides the HTTP adapter for the workflow engine. It is
// a thin layer translating requests to engine calls; all workflow logic
// lives in the engine.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/aggregation"
	"github.com/garyjia/workflow-engine/internal/workflow"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server wired to the engine and the inbox
func NewServer(config ServerConfig, engine *workflow.Engine, inbox *aggregation.View, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(engine, inbox, logger),
		logger:   logger,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api/v1")
	{
		api.POST("/instances", s.handlers.CreateInstance)
		api.GET("/instances/:id", s.handlers.GetInstance)
		api.GET("/instances/:id/history", s.handlers.GetHistory)

		api.POST("/instances/:id/approve", s.handlers.ApproveStep)
		api.POST("/instances/:id/reject", s.handlers.RejectApproval)
		api.POST("/instances/:id/cascade", s.handlers.CascadeRejection)
		api.POST("/instances/:id/resubmit", s.handlers.Resubmit)
		api.POST("/instances/:id/cancel", s.handlers.Cancel)
		api.POST("/instances/:id/appeal", s.handlers.Appeal)
		api.POST("/instances/:id/escalate", s.handlers.EscalateStep)

		api.POST("/delegations", s.handlers.AddDelegation)
		api.GET("/inbox", s.handlers.PendingApprovals)
	}
}

// Start starts the HTTP server; it blocks until the server stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server starting", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
