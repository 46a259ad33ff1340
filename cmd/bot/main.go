// Package main is the entry point for the weather bot server.
//
// It loads configuration, connects to Postgres and Redis, runs pending schema
// migrations, wires the Telegram/weather/geocoding clients into the bot
// controller, registers the webhook with Telegram, and serves the public
// webhook endpoint plus a private metrics listener.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

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

	"golang.org/x/sync/errgroup"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/api/handlers"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/bot"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/catalog"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/config"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/core"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/db"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/external"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/forecast"
	"github.com/BogdanDubenets/weather-bot-telegram/internal/session"
)

// startupTimeout bounds dependency initialization (DB, Redis, webhook
// registration) so a dead dependency fails the boot instead of hanging it.
const startupTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("weather bot starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// Postgres: pool first, then migrations, so a schema problem surfaces
	// before the bot accepts any traffic.
	pool, err := db.NewPool(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.Database); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	sessions, err := session.NewRedisStore(startCtx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer sessions.Close()

	// External clients.
	telegram := external.NewTelegramClient(cfg.Telegram, logger)
	weather := external.NewOpenWeatherClient(cfg.Weather, logger)

	// The geocoder is optional; assign through the concrete type so a nil
	// pointer stays a nil interface.
	var geo external.Geocoder
	if g := external.NewGoogleGeocoder(cfg.Geocoder, logger); g != nil {
		geo = g
	} else {
		logger.Info("no geocoder key configured, typed city names disabled")
	}

	controller := bot.NewController(bot.ControllerDeps{
		Catalog:   catalog.NewStaticCatalog(),
		Orders:    db.NewOrderRepository(pool, logger),
		Users:     db.NewUserRepository(pool, logger),
		Sessions:  sessions,
		Telegram:  telegram,
		Weather:   weather,
		Geocoder:  geo,
		Formatter: forecast.NewFormatter(logger),
		Policy:    cfg.Delivery.FailurePolicy,
		Logger:    logger,
	})

	metrics := core.NewMetrics()

	srv, err := core.NewServer(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
		core.ProbeFunc{ProbeName: "redis", Fn: sessions.Ping},
	}

	webhook := handlers.NewWebhookHandler(cfg.Telegram.WebhookSecret, controller, metrics, logger)
	srv.MountRoutes(webhook)

	// Tell Telegram where to deliver updates. Safe to repeat across restarts;
	// setWebhook is idempotent for an unchanged URL.
	webhookURL := cfg.Server.WebhookURL + "/webhook/telegram"
	if err := telegram.SetWebhook(startCtx, webhookURL, cfg.Telegram.WebhookSecret.Unmask()); err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}
	logger.Info("webhook registered", "url", webhookURL)

	return serve(ctx, cfg, logger, srv, metrics)
}

// serve runs the public webhook server and the private metrics listener until
// the context is cancelled, then shuts both down gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, srv *core.Server, metrics *core.Metrics) error {
	public := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	internal := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", public.Addr)
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("metrics server listening", "addr", internal.Addr)
		if err := internal.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := public.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("webhook server shutdown: %w", err))
		}
		if err := internal.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
