// Package api exposes the HTTP surface: chat events, operator commands,
// and alert handling.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/api/handlers"
	"github.com/jafarov01/property-management-bot/internal/commands"
	"github.com/jafarov01/property-management-bot/internal/services"
	"github.com/jafarov01/property-management-bot/internal/tracing"
)

// Server is the HTTP server.
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	service    *services.Service
	registry   *commands.Registry
	tracer     tracing.Tracer
}

// NewServer creates the HTTP server.
func NewServer(cfg config.Config, service *services.Service, registry *commands.Registry, tracer tracing.Tracer) *Server {
	server := &Server{
		config:   cfg,
		service:  service,
		registry: registry,
		tracer:   tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: server.router,
	}
	return server
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())

	opsHandler := handlers.NewOpsHandler(s.service, s.registry, s.tracer)
	opsHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
