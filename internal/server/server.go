package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"newsfacts/internal/config"
	"newsfacts/internal/core"
	"newsfacts/internal/logger"
	"newsfacts/internal/refresh"
)

// Pinger reports database health
type Pinger interface {
	Ping(ctx context.Context) error
}

// FactsReader is the cache-only read path
type FactsReader interface {
	Read(ctx context.Context, period *core.Period) (*core.Bundle, error)
	Periods(ctx context.Context) ([]core.PeriodSummary, error)
}

// FactsRefresher is the write path. Only the refresh endpoints and GET with refresh=true use it.
type FactsRefresher interface {
	RefreshRange(ctx context.Context, period core.Period) (*refresh.Result, error)
	Backfill(ctx context.Context, opts refresh.BackfillOptions) (*refresh.BackfillResult, error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         Pinger
	reader     FactsReader
	refresher  FactsRefresher
	config     config.Server
	log        *slog.Logger
	now        func() time.Time
}

// Option customises a Server
type Option func(*Server)

// WithClock overrides the clock used to resolve the default period
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger overrides the server logger
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a new HTTP server instance
func New(db Pinger, reader FactsReader, refresher FactsRefresher, cfg config.Server, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		db:        db,
		reader:    reader,
		refresher: refresher,
		config:    cfg,
		log:       logger.Get(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Use(middleware.Timeout(handlerTimeout(s.config.WriteTimeout)))

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/facts", func(r chi.Router) {
		r.Get("/", s.handleGetFacts)
		r.Get("/periods", s.handleListPeriods)
		r.Post("/refresh", s.handleRefreshFacts)

		r.With(s.requireAdminAPI).Post("/backfill", s.handleBackfillFacts)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// handlerTimeout is the request budget for handlers. It stops short of the write timeout so a
// handler that gives up still has time to write its response.
func handlerTimeout(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return 120 * time.Second
	}
	margin := writeTimeout / 10
	if margin > 5*time.Second {
		margin = 5 * time.Second
	}
	return writeTimeout - margin
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
