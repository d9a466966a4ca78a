// Package api exposes recordset reconciliation over a small JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	Listen    string
	AuthToken string // Bearer token; empty disables auth.
}

// Server is the HTTP reconcile API server.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        logr.Logger
}

// NewServer creates an HTTP server that reconciles recordsets through provider.
func NewServer(cfg ServerConfig, log logr.Logger, provider dns.Provider) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggingMiddleware(log))

	engine.GET("/healthz", HealthHandler)

	v1 := engine.Group("/v1")
	v1.Use(AuthMiddleware(cfg.AuthToken))
	{
		h := NewRecordsetHandler(log, provider)
		v1.POST("/recordsets/ensure", h.Ensure)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		log:    log,
	}
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server with a 5-second deadline.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error(err, "HTTP server shutdown error")
	}
}

// Engine returns the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
