// Package core is the HTTP chassis for the bot's inbound surface. It builds
// the chi router and enforces the cross-cutting concerns -- request IDs,
// panic recovery, logging, metrics -- before requests reach the webhook
// handler.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
)

// requestTimeout bounds webhook handling end to end. It leaves headroom over
// the weather client timeout so a slow provider surfaces as a domain error,
// not a cut connection.
const requestTimeout = 25 * time.Second

// Server encapsulates the HTTP surface dependencies, allowing injection
// during testing.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *Metrics
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer builds a Server. Routes are mounted separately via MountRoutes so
// tests can register their own.
func NewServer(cfg *config.Config, logger *slog.Logger, metrics *Metrics) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		router:  chi.NewRouter(),
	}, nil
}

// MountRoutes registers global middleware and the public endpoints. The
// webhook handler is injected so the chassis stays free of Telegram concerns.
func (s *Server) MountRoutes(webhook http.Handler) {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(ContextTimeoutMiddleware(requestTimeout))
	s.router.Use(RequestLogger(s.Logger, []string{
		"X-Telegram-Bot-Api-Secret-Token",
		"Authorization",
		"Cookie",
	}))
	s.router.Use(s.MetricsMiddleware)

	s.router.Get("/healthz", s.HandleHealth)
	s.router.Method(http.MethodPost, "/webhook/telegram", webhook)
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
