package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/ses-gateway/internal/api"
	"github.com/ignite/ses-gateway/internal/config"
	"github.com/ignite/ses-gateway/internal/mailer"
	"github.com/ignite/ses-gateway/internal/pipeline"
	"github.com/ignite/ses-gateway/internal/pkg/logger"
	"github.com/ignite/ses-gateway/internal/pkg/tokens"
	"github.com/ignite/ses-gateway/internal/ratelimit"
	"github.com/ignite/ses-gateway/internal/repository/postgres"
	"github.com/ignite/ses-gateway/internal/sns"
	"github.com/ignite/ses-gateway/internal/suppression"
	"github.com/ignite/ses-gateway/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("database connected")

	// Redis is optional; without it suppression lookups go straight to
	// Postgres.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, suppression cache disabled",
				"addr", cfg.Redis.Addr, "error", err.Error())
			redisClient = nil
		}
		pingCancel()
	}

	// Repositories
	messageRepo := postgres.NewMessageRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	clickRepo := postgres.NewClickRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)

	// Services
	suppressions := suppression.NewService(suppressionRepo, redisClient)
	processor := pipeline.NewProcessor(messageRepo, eventRepo, suppressions)
	recorder := tracking.NewRecorder(messageRepo, clickRepo)
	limiter := ratelimit.NewLimiter(messageRepo, cfg.Sending.RatePerHour, ratelimit.DefaultWindow)
	issuer := tokens.NewIssuer(cfg.Sending.UnsubscribeSecret)

	sesClient, err := mailer.NewSESClient(context.Background(), cfg.SES)
	if err != nil {
		log.Fatalf("Failed to initialize SES client: %v", err)
	}
	m := mailer.NewMailer(
		sesClient,
		messageRepo,
		suppressions,
		limiter,
		issuer,
		cfg.Tracking.BaseURL,
		cfg.SES.ConfigurationSet,
		cfg.Sending.AllowedDomains,
	)

	// HTTP surface
	verifier := sns.NewVerifier(sns.NewCertCache(nil))
	webhookHandler := api.NewWebhookHandler(verifier, processor, nil)
	trackingHandler := tracking.NewHandler(recorder, cfg.Tracking.FallbackRedirectURL)
	handlers := api.NewHandlers(messageRepo, eventRepo, clickRepo, suppressions, m, issuer)
	server := api.NewServer(cfg.Server, handlers, webhookHandler, trackingHandler)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		logger.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("server stopped")
}
