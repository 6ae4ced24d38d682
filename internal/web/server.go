// Package web provides the HTTP API of the analytics service.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justestif/anima-analytics/internal/auth"
	"github.com/justestif/anima-analytics/internal/logging"
)

// DefaultAddr is the default server address.
const DefaultAddr = ":8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int // requests per minute per IP, 0 disables
}

// Deps are the services behind the API. Spotify and Playlists may be nil,
// which leaves the Spotify routes unmounted.
type Deps struct {
	Analytics Analytics
	Resolver  auth.Resolver
	Spotify   SpotifyAccounts
	Playlists PlaylistCreator
	Health    Pinger
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	cfg      ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Deps) (*Server, error) {
	if deps.Analytics == nil || deps.Resolver == nil {
		return nil, errors.New("web: analytics service and resolver are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		router:   chi.NewRouter(),
		handlers: NewHandlers(deps),
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes(deps.Resolver)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if s.cfg.RateLimit > 0 {
		s.router.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
	}
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(resolver auth.Resolver) {
	h := s.handlers

	s.router.Get("/healthz", h.Health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1/analytics", func(r chi.Router) {
		r.Use(authenticate(resolver))
		r.Get("/stats", h.Stats)
		r.Get("/analysis/{id}", h.AnalysisDetail)
		r.Get("/history", h.History)
		r.Post("/save-analysis", h.SaveAnalysis)
		r.Post("/sessions", h.StartSession)
		r.Post("/sessions/{id}/end", h.EndSession)
		r.Get("/moods", h.Moods)
	})

	if h.spotify != nil {
		s.router.Route("/v1/auth/spotify", func(r chi.Router) {
			// The state parameter identifies the user on the way back.
			r.Get("/callback", h.SpotifyCallback)
			r.With(authenticate(resolver)).Get("/", h.SpotifyLogin)
			r.With(authenticate(resolver)).Delete("/", h.SpotifyDisconnect)
		})

		s.router.Route("/v1/spotify", func(r chi.Router) {
			r.Use(authenticate(resolver))
			r.Get("/user-info", h.SpotifyUserInfo)
			r.Get("/playlists", h.SpotifyPlaylists)
			if h.playlists != nil {
				r.Post("/create-playlist", h.CreatePlaylist)
			}
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.server.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		logging.Info().Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}
