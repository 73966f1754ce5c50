// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cadence/internal/api"
	"github.com/stwalsh4118/cadence/internal/channel"
	"github.com/stwalsh4118/cadence/internal/config"
	"github.com/stwalsh4118/cadence/internal/db"
	"github.com/stwalsh4118/cadence/internal/logger"
	"github.com/stwalsh4118/cadence/internal/middleware"
	"github.com/stwalsh4118/cadence/internal/playback"
	"github.com/stwalsh4118/cadence/internal/source"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	db              *db.DB
	repos           *db.Repositories
	provider        *source.Provider
	watcher         *source.Watcher
	channelService  *channel.ChannelService
	playlistService *channel.PlaylistService
	sessions        *playback.Manager
	router          *gin.Engine
	server          *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)
	provider := source.NewProvider(source.NewRepositoryCatalog(repos), cfg.Source)

	watcher, err := source.NewWatcher(provider, cfg.Source.ManifestPollInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest watcher: %w", err)
	}
	provider.SetTracker(watcher)

	channelService := channel.NewChannelService(repos, provider)
	playlistService := channel.NewPlaylistService(database, repos, provider)
	sessions := playback.NewManager(provider, channelService, cfg.Queue)

	s := &Server{
		config:          cfg,
		db:              database,
		repos:           repos,
		provider:        provider,
		watcher:         watcher,
		channelService:  channelService,
		playlistService: playlistService,
		sessions:        sessions,
	}
	s.setupRouter()
	return s, nil
}

// Handler returns the router serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default()) // allows all origins

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.sessions)
	api.SetupMediaRoutes(apiGroup, s.repos, s.playlistService)
	api.SetupChannelRoutes(apiGroup, s.channelService, s.playlistService)
	api.SetupAdBreakRoutes(apiGroup, s.playlistService)
	api.SetupSessionRoutes(apiGroup, s.sessions)
}

// Start starts the manifest watcher and the HTTP server. It blocks until the
// server stops and returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if err := s.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start manifest watcher: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Stop sessions first so no session waits on a closed subscription
	s.sessions.StopAll()

	if err := s.watcher.Stop(); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to stop manifest watcher")
	}

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
