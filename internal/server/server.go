// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and routes.
// It decides which URL patterns map to which handler functions, what
// middleware runs on which routes, and how the server starts and stops.
//
// DEPENDENCY INJECTION FLOW:
// main.go loads config.Config and a logger, then calls New, which creates:
//
//	sqlite.DB → Users/Records/Applications views
//	          → AuthService, RecordService, ProfileService
//	          → AuthHandler, RecordHandler, ProfileHandler
//
// This is the "composition root" pattern: all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/job-tracker/internal/auth"
	"github.com/sakif/job-tracker/internal/config"
	"github.com/sakif/job-tracker/internal/handler"
	"github.com/sakif/job-tracker/internal/middleware"
	sqliteRepo "github.com/sakif/job-tracker/internal/repository/sqlite"
	"github.com/sakif/job-tracker/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it on shutdown;
// callers that never Start (tests) call Close.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New opens the database, builds every service and handler, and registers
// the routes. ctx is only used while constructing the Google verifier.
//
// IMPORT ALIAS:
// We import repository/sqlite as `sqliteRepo` to avoid confusion with
// the sqlite driver package.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger),
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                       → database ping
//	POST   /users/auth/register           → create local account
//	POST   /users/auth/login              → username + password
//	POST   /users/auth/google-login       → Google ID token
//	GET    /users/auth/google             → redirect to Google   (code flow only)
//	GET    /users/auth/google/callback    → Google redirect back (code flow only)
//	GET    /users                         → list users             [auth]
//	GET    /users/me                      → the caller             [auth]
//	GET    /records                       → list, with isApplied   [auth]
//	POST   /records                       → create                 [auth]
//	PUT    /records/{id}                  → update own record      [auth]
//	DELETE /records/{id}                  → delete own record      [auth]
//	PUT    /records/{id}/click            → count a click
//	GET    /records/{id}/status           → caller's status        [auth]
//	PATCH  /records/{id}/status           → set caller's status    [auth]
//	POST   /records/duplicate/{recordId}  → copy into own records  [auth]
//	GET    /profiles/{userId}             → own profile            [auth]
//	PUT    /profiles/{userId}             → add applied record     [auth]
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
//  1. RequestID: assigns unique ID to each request (for tracing)
//  2. RealIP: extracts real client IP from proxy headers
//  3. Recoverer: catches panics and returns 500 instead of crashing
//  4. Logger: logs each request with timing info
//  5. CORS: refuses unknown origins before any work is done
//  6. Rate limiter: per client IP, so it needs RealIP's result
func (s *Server) setupRoutes(ctx context.Context) error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.AllowedOrigins))
	s.router.Use(s.limiter.Handler)

	// === Auth dependencies ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	// An interface holding a nil *auth.GoogleVerifier is not nil, so only
	// assign when there is a real verifier.
	var verifier service.GoogleVerifier
	if s.config.GoogleLoginEnabled() {
		v, err := auth.NewGoogleVerifier(ctx, s.config.GoogleClientID)
		if err != nil {
			return fmt.Errorf("creating google verifier: %w", err)
		}
		verifier = v
	} else {
		s.logger.Warn("googleClientId not set, Google sign-in is disabled")
	}

	var googleProvider *auth.GoogleProvider
	if s.config.GoogleRedirectEnabled() {
		googleProvider = auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		)
	}

	// === Services ===
	// Each repository view shares the same connection.
	users := s.db.Users()
	authService := service.NewAuthService(users, tokens, passwords, verifier, s.logger)
	recordService := service.NewRecordService(s.db.Records(), s.db.Applications(), s.logger)
	profileService := service.NewProfileService(s.db.Applications(), s.logger)

	// === Handlers ===
	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	authHandler := handler.NewAuthHandler(authService, googleProvider, s.logger)
	recordHandler := handler.NewRecordHandler(recordService, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, s.logger)

	requireAuth := auth.RequireAuth(tokens, users)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/users", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/google-login", authHandler.HandleGoogleLogin)
		if googleProvider != nil {
			r.Get("/auth/google", authHandler.HandleGoogleRedirect)
			r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		}

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", authHandler.HandleList)
			r.Get("/me", authHandler.HandleMe)
		})
	})

	s.router.Route("/records", func(r chi.Router) {
		// Anyone can count a click; the link is followed from public pages.
		r.Put("/{id}/click", recordHandler.HandleClick)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", recordHandler.HandleList)
			r.Post("/", recordHandler.HandleCreate)
			r.Post("/duplicate/{recordId}", recordHandler.HandleDuplicate)
			r.Put("/{id}", recordHandler.HandleUpdate)
			r.Delete("/{id}", recordHandler.HandleDelete)
			r.Get("/{id}/status", recordHandler.HandleGetStatus)
			r.Patch("/{id}/status", recordHandler.HandleSetStatus)
		})
	})

	s.router.Route("/profiles", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/{userId}", profileHandler.HandleGet)
		r.Put("/{userId}", profileHandler.HandleAddRecord)
	})

	return nil
}

// Handler exposes the router so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start does this itself on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the rate limiter's cleanup loop
//  4. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go s.limiter.Run(bg, time.Minute, 10*time.Minute)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Any("allowed_origins", s.config.AllowedOrigins),
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

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
