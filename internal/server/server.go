// Package server is the composition root: it builds the store, the event
// notifier, the services and the handlers from a config.Config, and mounts
// them on a chi router.
//
// DEPENDENCY FLOW:
//
//	config → store (sqlite | memory) → PublishingStore (+ notifier: redis | local)
//	       → services (submission, feed, auth) → handlers → routes
//
// Nothing below this package constructs its own clients; everything is
// injected here.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/repo-rater/internal/auth"
	"github.com/sakif/repo-rater/internal/config"
	"github.com/sakif/repo-rater/internal/events"
	"github.com/sakif/repo-rater/internal/handler"
	"github.com/sakif/repo-rater/internal/metadata"
	"github.com/sakif/repo-rater/internal/middleware"
	"github.com/sakif/repo-rater/internal/repository"
	"github.com/sakif/repo-rater/internal/repository/memory"
	sqliteRepo "github.com/sakif/repo-rater/internal/repository/sqlite"
	"github.com/sakif/repo-rater/internal/service"
)

// Server owns the router and every long-lived resource behind it. The store
// and the notifier are closed by Close (Start calls it on shutdown).
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	base     repository.Store // the undecorated backend, for health checks
	store    repository.Store
	notifier events.Notifier
	tokens   *auth.TokenService // nil when sign-in is disabled
}

// New wires the whole application. On error every resource opened so far
// is released.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	base, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := openNotifier(cfg, logger)
	if err != nil {
		base.Close()
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		base:     base,
		store:    events.NewPublishingStore(base, notifier, logger),
		notifier: notifier,
	}

	if err := s.seedBlacklist(context.Background()); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreType {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}

func openNotifier(cfg *config.Config, logger *slog.Logger) (events.Notifier, error) {
	if cfg.RedisURL == "" {
		return events.NewLocal(), nil
	}
	n, err := events.NewRedis(cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting feed notifier: %w", err)
	}
	return n, nil
}

// seedBlacklist writes the configured words when the store has no
// blacklist yet. An existing list is never replaced.
func (s *Server) seedBlacklist(ctx context.Context) error {
	seed := s.config.Blacklist()
	if len(seed.Words) == 0 {
		return nil
	}

	created, err := s.store.CreateBlacklistIfNotExists(ctx, seed)
	if err != nil {
		return fmt.Errorf("seeding blacklist: %w", err)
	}
	if created {
		s.logger.Info("blacklist seeded", slog.Int("words", len(seed.Words)))
	}
	return nil
}

// setupRoutes mounts middleware and routes.
//
// ROUTES:
//
//	GET  /healthz               → dependency health
//	GET  /api/og?url=           → link-preview metadata
//	GET  /api/cards             → feed (JSON)
//	GET  /api/cards/live        → feed (websocket)
//	POST /api/cards             → submit a card
//	GET  /auth/github/login     → start sign-in
//	GET  /auth/github/callback  → finish sign-in
//	POST /auth/logout           → sign out
//	GET  /auth/me               → current session
//
// MIDDLEWARE ORDER: RequestID → RealIP → Logger → Recoverer → CORS.
// Logger sits outside Recoverer so recovered panics are logged as 500s.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	fetcher := metadata.NewFetcher(s.config.MetadataTimeout, s.logger)

	submissions := service.NewSubmissionService(s.store, s.store, s.store, s.logger)
	feed := service.NewFeedService(s.store, fetcher, s.notifier, s.logger)

	cards := handler.NewCardHandler(submissions, feed, s.logger)
	live := handler.NewLiveHandler(feed, s.config.CORSOrigins, s.logger)
	previews := handler.NewPreviewHandler(fetcher, s.logger)
	health := handler.NewHealthHandler(s.healthChecks(), s.logger)

	// Without sign-in every submission comes from an unauthenticated visitor.
	sessionMiddleware := func(next http.Handler) http.Handler { return next }

	if s.config.AuthEnabled() {
		tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		s.tokens = tokens
		sessionMiddleware = auth.OptionalAuth(tokens)

		github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
		authService := service.NewAuthService(s.store, tokens, s.logger)
		authHandler := handler.NewAuthHandler(github, authService, tokens.TTL(), s.config.SecureCookies, s.logger)

		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)
		})
	} else {
		s.logger.Warn("JWT_SECRET or GITHUB_CLIENT_ID not set; sign-in is disabled")
	}

	s.router.Get("/healthz", health.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/og", previews.HandleOG)
		r.Get("/cards", cards.HandleList)
		r.Get("/cards/live", live.HandleLive)
		r.With(sessionMiddleware).Post("/cards", cards.HandleSubmit)
	})

	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) healthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck)
	if p, ok := s.base.(pinger); ok {
		checks["store"] = p.Ping
	}
	if p, ok := s.notifier.(pinger); ok {
		checks["events"] = p.Ping
	}
	return checks
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the notifier and the store.
func (s *Server) Close() error {
	return errors.Join(s.notifier.Close(), s.store.Close())
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully: stop
// accepting connections, give in-flight requests 30 seconds, close the
// notifier (ending live feeds) and the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreType),
			slog.Bool("redis", s.config.RedisURL != ""),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown;
		// closing the notifier ends their watch loops.
		srv.RegisterOnShutdown(func() { s.notifier.Close() })

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
