// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/api"
	"github.com/stwalsh4118/livetv/internal/channel"
	"github.com/stwalsh4118/livetv/internal/config"
	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/dvr"
	"github.com/stwalsh4118/livetv/internal/epg"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/metrics"
	"github.com/stwalsh4118/livetv/internal/middleware"
	"github.com/stwalsh4118/livetv/internal/playlist"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	db              *db.DB
	repos           *db.Repositories
	channelService  *channel.ChannelService
	playlistService *playlist.Service
	sources         Sources
	router          *gin.Engine
	server          *http.Server
}

// Sources are the upstream collaborators a Server reads from
type Sources struct {
	M3U       channel.M3USource
	Guide     guide.Source
	Manifests api.ManifestSource
	DVR       api.DVRStatus
}

// New creates a new server instance backed by the configured DVR
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)
	dvrClient := dvr.NewClient(dvr.Options{
		BaseURL:            cfg.DVR.BaseURL,
		Device:             cfg.DVR.Device,
		RequestTimeout:     cfg.DVR.RequestTimeout,
		EPGDurationSeconds: cfg.DVR.EPGDurationSeconds,
	})

	return NewWithSources(cfg, database, Sources{
		M3U:       dvrClient,
		Guide:     epg.NewProvider(dvrClient, repos.Channels, nil),
		Manifests: dvrClient,
		DVR:       dvrClient,
	})
}

// NewWithSources creates a server with explicit upstream sources
func NewWithSources(cfg *config.Config, database *db.DB, sources Sources) *Server {
	repos := db.NewRepositories(database)

	return &Server{
		config:          cfg,
		db:              database,
		repos:           repos,
		channelService:  channel.NewChannelService(repos, sources.M3U),
		playlistService: playlist.NewService(repos, nil),
		sources:         sources,
	}
}

// Router returns the configured router, building it on first use
func (s *Server) Router() *gin.Engine {
	if s.router == nil {
		s.setupRouter()
	}
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

	metrics.Register()

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestID())     // Correlation id for logs and responses
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(middleware.Metrics())       // Prometheus request counter
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	s.router.GET("/metrics", metrics.Handler())
	api.SetupStreamRoutes(s.router, s.channelService, s.sources.Manifests)

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.sources.DVR)
	api.SetupChannelRoutes(apiGroup, s.channelService)
	api.SetupPlaylistRoutes(apiGroup, s.playlistService)
	api.SetupGuideRoutes(apiGroup, s.sources.Guide)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.Router(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Bool("dvr_configured", s.config.DVR.BaseURL != "").
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
