// Package server is the composition root: it opens the backends, builds the
// services and handlers, mounts the routes and runs the HTTP server with its
// background workers.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load → logging.New → server.New
//	server.New: Open (store, cache, mail, services) → handlers → routes
//
// Handlers never touch storage directly and services never touch HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sankalp/sankalp/internal/auth"
	"github.com/sankalp/sankalp/internal/config"
	"github.com/sankalp/sankalp/internal/handler"
	"github.com/sankalp/sankalp/internal/middleware"
)

// Server represents the HTTP server and everything it owns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	deps   *Deps
}

// New opens the dependencies named by cfg and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	deps, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		deps:   deps,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                       → store ping
//	GET    /auth/google/login             → redirect to Google
//	GET    /auth/google/callback          → browser OAuth callback
//	POST   /auth/google/callback          → SPA OAuth code exchange
//	POST   /auth/register|verify|otp|login|logout
//	GET    /api/me                        PATCH /api/me
//	POST   /api/deposit-paid
//	GET    /api/habits                    POST /api/habits
//	DELETE /api/habits/{id}               GET  /api/habits/{id}/performance
//	POST   /api/checkins                  GET  /api/checkins/{date}
//	PUT    /api/daily-log/{date}
//	GET    /api/stats  /api/streak/details  /api/streak/at-risk
//	GET    /api/insights/prediction       GET  /api/badges
//
// MIDDLEWARE ORDER MATTERS:
// RequestID and RealIP run first so the logger and the rate limiter see the
// request id and the client address; Recoverer turns panics into 500s.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	d := s.deps

	var google handler.GoogleOAuth
	if s.config.GoogleConfigured() {
		google = auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
	} else {
		s.logger.Warn("Google OAuth not configured, Google sign-in is disabled")
	}

	authHandler := handler.NewAuthHandler(d.Auth, google, d.Tokens.TTL(), s.config.CookieSecure, s.config.FrontendURL, s.logger)
	userHandler := handler.NewUserHandler(d.Users, s.logger)
	habitHandler := handler.NewHabitHandler(d.Habits, s.logger)
	checkinHandler := handler.NewCheckInHandler(d.CheckIns, s.logger)
	statsHandler := handler.NewStatsHandler(d.Stats, s.logger)

	s.router.Get("/healthz", handler.HandleHealth(d.Store, s.logger))

	authLimit := middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
		Name:   "auth",
		Limit:  s.config.AuthRateLimit,
		Window: s.config.RateLimitWindow,
	}, s.logger)
	apiLimit := middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
		Name:   "api",
		Limit:  s.config.RateLimit,
		Window: s.config.RateLimitWindow,
	}, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(authLimit)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/google/callback", authHandler.HandleGoogleToken)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/verify", authHandler.HandleVerify)
		r.Post("/otp", authHandler.HandleResendOTP)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(apiLimit)
		r.Use(auth.RequireAuth(d.Tokens))

		r.Get("/me", userHandler.HandleMe)
		r.Patch("/me", userHandler.HandleUpdateMe)
		r.Post("/deposit-paid", userHandler.HandleDepositPaid)

		r.Get("/habits", habitHandler.HandleList)
		r.Post("/habits", habitHandler.HandleReplace)
		r.Delete("/habits/{id}", habitHandler.HandleDelete)
		r.Get("/habits/{id}/performance", statsHandler.HandlePerformance)

		r.Post("/checkins", checkinHandler.HandleRecord)
		r.Get("/checkins/{date}", checkinHandler.HandleForDate)
		r.Put("/daily-log/{date}", checkinHandler.HandleDailyLog)

		r.Get("/stats", statsHandler.HandleStats)
		r.Get("/streak/details", statsHandler.HandleDetails)
		r.Get("/streak/at-risk", statsHandler.HandleAtRisk)
		r.Get("/insights/prediction", statsHandler.HandlePrediction)
		r.Get("/badges", statsHandler.HandleBadges)
	})
}

// Start runs the HTTP server, the reminder loop and, with AMQP configured,
// the notification consumer. It blocks until SIGINT/SIGTERM or a fatal
// server error.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections and cancel the background workers
//  2. Wait up to 30s for in-flight requests
//  3. Wait for the workers, then close the backends
func (s *Server) Start() error {
	defer s.deps.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		s.deps.Reminders.Run(workerCtx, s.config.ReminderInterval)
	}()

	if s.deps.Queue != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := s.deps.Queue.Consume(workerCtx, s.deps.Worker(s.logger)); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("notification consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("timezone", s.config.Location.String()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		} else {
			s.logger.Info("server stopped gracefully")
		}
	}

	stopWorkers()
	workers.Wait()
	return runErr
}
