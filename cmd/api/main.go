package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/slotline/booking-platform/internal/api/router"
	"github.com/slotline/booking-platform/internal/appointments"
	"github.com/slotline/booking-platform/internal/availability"
	"github.com/slotline/booking-platform/internal/calcom"
	appconfig "github.com/slotline/booking-platform/internal/config"
	"github.com/slotline/booking-platform/internal/observability/metrics"
	"github.com/slotline/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	slotCache := availability.NewSlotCache(redisClient, cfg.SlotCacheTTL, logger)
	availabilityService := availability.NewService(pool, slotCache, logger)
	availabilityHandler := availability.NewHandler(availabilityService, cfg, bookingMetrics, logger)

	gateway := calcom.NewClient(cfg.CalBaseURL, cfg.CalAPIKey, cfg.CalEventTypeID, cfg.CalTimeout, logger)
	appointmentStore := appointments.NewStore(pool)
	reconciler := appointments.NewService(gateway, appointmentStore, bookingMetrics, logger)
	bookingHandler := appointments.NewHandler(reconciler, logger)

	webhookHandler := calcom.NewWebhookHandler(cfg.CalWebhookSecret, reconciler, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AvailabilityHandler: availabilityHandler,
		BookingHandler:      bookingHandler,
		CalWebhook:          webhookHandler,
		MetricsHandler:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
