package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/database"
	"github.com/aristath/octave/internal/di"
	"github.com/aristath/octave/internal/modules/rebalancing/handlers"
	"github.com/aristath/octave/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container
	Scheduler *scheduler.Scheduler
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	managedDBs     []*database.DB
	historyConn    *sql.DB
	systemHandlers *SystemHandlers
	scheduler      *scheduler.Scheduler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	managedDBs := []*database.DB{
		cfg.Container.UniverseDB,
		cfg.Container.ScoresDB,
		cfg.Container.CacheDB,
	}

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		managedDBs,
		cfg.Container.SecurityRepo,
		cfg.Container.RunRepo,
		cfg.Scheduler,
		cfg.Config.Scheduler,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		managedDBs:     managedDBs,
		historyConn:    cfg.Container.HistoryConn,
		systemHandlers: systemHandlers,
		scheduler:      cfg.Scheduler,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job instances for manual triggering via API.
// A nil concrete job must stay a nil interface, so each field is checked
// before assignment.
func (s *Server) SetJobs(jobs *di.JobInstances) {
	var rebalance, snapshot, cloudBackup, cacheCleanup scheduler.Job
	if jobs.Rebalance != nil {
		rebalance = jobs.Rebalance
	}
	if jobs.Snapshot != nil {
		snapshot = jobs.Snapshot
	}
	if jobs.CloudBackup != nil {
		cloudBackup = jobs.CloudBackup
	}
	if jobs.CacheCleanup != nil {
		cacheCleanup = jobs.CacheCleanup
	}

	s.systemHandlers.SetJobs(rebalance, snapshot, cloudBackup, cacheCleanup)
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// System monitoring and operations
		s.setupSystemRoutes(r)

		// Live event stream
		s.setupEventsRoutes(r)

		// Scoring and allocation
		s.setupRebalancingRoutes(r)
	})
}

// setupSystemRoutes configures system monitoring and operations routes
func (s *Server) setupSystemRoutes(r chi.Router) {
	systemHandlers := s.systemHandlers

	r.Route("/system", func(r chi.Router) {
		// Status and monitoring
		r.Get("/status", systemHandlers.HandleSystemStatus)
		r.Get("/jobs", systemHandlers.HandleJobsStatus)

		// Job triggers (manual operation triggers)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/rebalance", systemHandlers.HandleTriggerRebalance)
			r.Post("/snapshot", systemHandlers.HandleTriggerSnapshot)
			r.Post("/cloud-backup", systemHandlers.HandleTriggerCloudBackup)
			r.Post("/cache-cleanup", systemHandlers.HandleTriggerCacheCleanup)
		})
	})
}

// setupEventsRoutes configures the websocket event stream
func (s *Server) setupEventsRoutes(r chi.Router) {
	streamHandler := NewEventsStreamHandler(s.container.EventBus, s.log)
	r.Get("/events/ws", streamHandler.ServeHTTP)
}

// setupRebalancingRoutes configures scoring and allocation module routes
func (s *Server) setupRebalancingRoutes(r chi.Router) {
	handler := handlers.NewHandler(
		s.container.RebalancingService,
		s.container.RunRepo,
		s.container.ScoreRepo,
		s.container.AllocationRepo,
		s.container.SecurityRepo,
		s.container.FundamentalsRepo,
		s.container.History,
		s.cfg,
		s.log,
	)

	handler.RegisterRoutes(r)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
