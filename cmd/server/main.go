package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tutoring-platform/internal/clock"
	"tutoring-platform/internal/config"
	"tutoring-platform/internal/database"
	"tutoring-platform/internal/events"
	"tutoring-platform/internal/handlers"
	"tutoring-platform/internal/lock"
	"tutoring-platform/internal/middleware"
	"tutoring-platform/internal/ports"
	"tutoring-platform/internal/repository"
	"tutoring-platform/internal/scheduler"
	"tutoring-platform/internal/service"
	"tutoring-platform/internal/webhook"
	"tutoring-platform/pkg/confirmtoken"
	"tutoring-platform/pkg/logger"
	"tutoring-platform/pkg/metrics"
)

// loadEnvFile loads KEY=VALUE pairs from filename into the process
// environment, skipping keys already set. A missing file is not an error:
// deployments that inject env vars directly never ship a .env.
func loadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", filename).Msg(".env file not found, using system environment variables")
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

func main() {
	if err := loadEnvFile(".env"); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Setup(cfg.Server.Env)

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Str("config", cfg.String()).Msg("Starting booking lifecycle service")

	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	// Do NOT defer db.Close() here: the database must outlive every
	// goroutine that touches it, see the shutdown sequence at the end of run().

	if err := run(cfg, db); err != nil {
		log.Error().Err(err).Msg("Application failed, cleaning up resources")
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Error closing database during error cleanup")
		}
		log.Fatal().Err(err).Msg("Fatal error")
	}
}

// run wires every dependency, starts the HTTP server and scheduler runner,
// and blocks until a termination signal triggers an orderly shutdown.
func run(cfg *config.Config, db *database.DB) error {
	log.Info().Msg("Database connected successfully")

	healthCheckCtx, cancelHealthCheck := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		failureCount := 0
		const (
			healthCheckTimeout = 5 * time.Second
			slowHealthCheckMs  = 1000
		)

		for {
			select {
			case <-healthCheckCtx.Done():
				log.Debug().Msg("health check goroutine shutting down")
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(healthCheckCtx, healthCheckTimeout)
				start := time.Now()
				err := db.Pool.Ping(ctx)
				duration := time.Since(start)
				cancel()

				if healthCheckCtx.Err() != nil {
					return
				}

				if duration.Milliseconds() > int64(slowHealthCheckMs) {
					log.Warn().Int64("duration_ms", duration.Milliseconds()).Msg("slow database health check")
				}

				if err != nil {
					failureCount++
					log.Warn().Err(err).Int("failure_count", failureCount).Msg("database health check failed")
					metrics.DBErrorsTotal.Inc()
					if failureCount >= 3 {
						log.Fatal().Msg("database connection lost after 3 consecutive failures, shutting down")
					}
				} else {
					if failureCount > 0 {
						log.Info().Int("previous_failures", failureCount).Msg("database health check recovered")
					}
					failureCount = 0
				}

				stats := db.Pool.Stat()
				metrics.DBConnectionsActive.Set(float64(stats.AcquiredConns()))
				metrics.DBConnectionsIdle.Set(float64(stats.IdleConns()))
			}
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		cancelHealthCheck()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	locker := lock.NewLocker(redisClient)

	clk := clock.NewPostgres(db.Pool)
	dispatcher := events.NewDispatcher()

	bookingRepo := repository.NewBookingRepository(db.Sqlx)
	paymentRepo := repository.NewPaymentRepository()
	refundRepo := repository.NewRefundRepository()
	webhookRepo := repository.NewWebhookRepository()
	packageRepo := repository.NewPackageRepository(db.Sqlx)
	walletRepo := repository.NewWalletRepository()

	meetings := ports.NewLiveKitMeeting(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.PublicURL)
	calendarPort := ports.NewHTTPCalendar(cfg.Calendar.BaseURL)
	emailPort := ports.NewSMTPEmail(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.FromEmail, cfg.SMTP.FromName)
	paymentProvider := ports.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, cfg.Stripe.WebhookSecret)

	orch := service.NewOrchestrator(db.Pool, bookingRepo, paymentRepo, refundRepo, packageRepo, walletRepo, clk, cfg.Rules, meetings, calendarPort, emailPort, paymentProvider, dispatcher)
	ingress := webhook.NewIngress(db.Pool, webhookRepo, paymentProvider, orch)

	tokens := confirmtoken.NewSigner(cfg.Session.Secret)

	bookingHandler := handlers.NewBookingHandler(orch, bookingRepo, tokens)
	paymentHandler := handlers.NewPaymentHandler(ingress)
	healthHandler := handlers.NewHealthHandler(db.Pool)

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	runner := scheduler.NewRunner(locker, cfg.Rules,
		scheduler.NewExpireRequestsJob(bookingRepo, orch, clk, cfg.Rules),
		scheduler.NewStartSessionsJob(bookingRepo, orch, clk, cfg.Rules),
		scheduler.NewEndSessionsJob(bookingRepo, orch, clk, cfg.Rules),
		scheduler.NewSendReminderJob(bookingRepo, emailPort, clk, cfg.Rules),
		scheduler.NewPruneWebhooksJob(db.Pool, webhookRepo, clk, cfg.Rules),
		scheduler.NewPackageExpiryJob(packageRepo, clk, cfg.Rules),
	)
	go runner.Start(schedulerCtx)

	corsConfig := middleware.DefaultCORSConfig()
	if cfg.Server.ProductionDomain != "" {
		corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, "https://"+cfg.Server.ProductionDomain)
		log.Info().Str("domain", cfg.Server.ProductionDomain).Msg("added production domain to CORS allowed origins")
	}
	bodyLimitConfig := middleware.DefaultBodyLimitConfig()

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.BodyLimitMiddleware(bodyLimitConfig))
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.CORSMiddleware(corsConfig))

	r.Get("/health", healthHandler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payments", paymentHandler.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ActorMiddleware)

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", bookingHandler.CreateBooking)
				r.Get("/", bookingHandler.ListBookings)
				r.Get("/{id}", bookingHandler.GetBooking)
				r.Post("/{id}/approve", bookingHandler.ApproveBooking)
				r.Post("/{id}/decline", bookingHandler.DeclineBooking)
				r.Post("/{id}/cancel", bookingHandler.CancelBooking)
				r.Post("/{id}/reschedule", bookingHandler.RescheduleBooking)
				r.Post("/{id}/no-show", bookingHandler.MarkNoShow)
				r.Post("/{id}/disputes", bookingHandler.OpenDispute)
				r.Post("/{id}/disputes/resolve", bookingHandler.ResolveDispute)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		cancelHealthCheck()
		cancelScheduler()
		return fmt.Errorf("server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server is shutting down")

	// Shutdown order matters: stop accepting requests, stop background
	// workers that touch the database, then close the database.

	log.Debug().Msg("phase 1: shutting down HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Debug().Msg("phase 2: stopping background workers")
	cancelScheduler()
	cancelHealthCheck()
	if err := redisClient.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing redis client")
	}

	shutdownGracePeriod := 200 * time.Millisecond
	log.Debug().Dur("grace_period", shutdownGracePeriod).Msg("waiting for background goroutines to exit")
	time.Sleep(shutdownGracePeriod)

	log.Debug().Msg("phase 3: closing database connection")
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("error closing database")
	}

	log.Info().Msg("server shutdown complete")
	return nil
}
