// Package server provides the HTTP server and routing for dealflow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/dealflow/internal/config"
	"github.com/aristath/dealflow/internal/di"
	cataloghandlers "github.com/aristath/dealflow/internal/modules/catalog/handlers"
	filtershandlers "github.com/aristath/dealflow/internal/modules/filters/handlers"
	matchinghandlers "github.com/aristath/dealflow/internal/modules/matching/handlers"
	opportunitieshandlers "github.com/aristath/dealflow/internal/modules/opportunities/handlers"
	resubmissionhandlers "github.com/aristath/dealflow/internal/modules/resubmission/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	container      *di.Container
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	c := cfg.Container

	var archiveStats func() any
	if c.Archive != nil {
		archiveStats = func() any { return c.Archive.Stats() }
	}

	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		c.Databases(),
		c.Work.Processor,
		c.Work.Registry,
		c.Work.Completion,
		func() PipelineCounts {
			return PipelineCounts{
				Investors:           len(c.Filters.Investors()),
				Views:               len(c.ViewStore.Investors()),
				StreamSubscribers:   c.Hub.Subscribers(),
				StreamDroppedNotice: int(c.Hub.Dropped()),
				Events:              c.EventManager.Emitted(),
			}
		},
		archiveStats,
	)
	if c.Scheduler != nil {
		systemHandlers.SetJobs(c.Scheduler)
	}

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg,
		container:      c,
		systemHandlers: systemHandlers,
		eventsStream:   NewEventsStreamHandler(c.EventBus, cfg.Log),
	}

	s.setupMiddleware()
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

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route.
// Timeout and compression are applied per group in setupRoutes so the
// streaming endpoints are left alone.
func (s *Server) setupMiddleware() {
	// Recover from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived streams
		r.Group(func(r chi.Router) {
			resubmissionhandlers.NewHandler(c.Outbox, c.Hub, s.log).RegisterRoutes(r)
			r.Get("/events/stream", s.eventsStream.ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			if !s.cfg.DevMode {
				r.Use(middleware.Compress(5))
			}

			cataloghandlers.NewHandler(c.Catalog, s.log).RegisterRoutes(r)
			matchinghandlers.NewHandler(c.Ledger, s.log).RegisterRoutes(r)
			filtershandlers.NewHandler(c.Filters, s.log).RegisterRoutes(r)
			opportunitieshandlers.NewHandler(c.Materializer, s.log).RegisterRoutes(r)
			c.Work.Handlers.RegisterRoutes(r)
			s.systemHandlers.RegisterRoutes(r)
		})
	})
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
