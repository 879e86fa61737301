package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ayursutra/therapy-portal/internal/api/router"
	appconfig "github.com/ayursutra/therapy-portal/internal/config"
	"github.com/ayursutra/therapy-portal/internal/identity"
	"github.com/ayursutra/therapy-portal/internal/notify"
	"github.com/ayursutra/therapy-portal/internal/observability/metrics"
	"github.com/ayursutra/therapy-portal/internal/sessions"
	"github.com/ayursutra/therapy-portal/internal/users"
	"github.com/ayursutra/therapy-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	if cfg.Env == "development" {
		logger = logging.NewText(cfg.LogLevel)
	}
	logger.Info("starting therapy-portal API server", "env", cfg.Env, "port", cfg.Port)

	// Session storage: Postgres when configured, in-memory otherwise so a
	// fresh checkout runs without infrastructure.
	var repo sessions.Repository = sessions.NewInMemoryRepository()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = sessions.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory session store")
	}

	loc := time.Local
	if cfg.ScheduleTimezone != "" {
		parsed, err := time.LoadLocation(cfg.ScheduleTimezone)
		if err != nil {
			logger.Error("invalid SCHEDULE_TIMEZONE", "error", err, "zone", cfg.ScheduleTimezone)
			os.Exit(1)
		}
		loc = parsed
	}

	schedulingMetrics := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)
	sessionService := sessions.NewService(repo, logger, schedulingMetrics, sessions.Options{
		ConflictCheck: cfg.ConflictCheck,
		Location:      loc,
	})

	var provider identity.Provider = identity.NewClient(cfg.IdentityAPIBase, cfg.IdentityAPIKey, logger)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		provider = identity.NewCache(provider, rdb, time.Duration(cfg.CacheTTL)*time.Second, logger)
	}

	var emailSender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}
	notifier := notify.NewService(emailSender, provider, logger)

	sessionsHandler := sessions.NewHandler(sessionService, notifier, logger)
	usersHandler := users.NewHandler(provider, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		SessionsHandler:    sessionsHandler,
		UsersHandler:       usersHandler,
		AuthSecret:         cfg.IdentityJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsHandler:     promhttp.Handler(),
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
