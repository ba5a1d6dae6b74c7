package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/beacon-compliance/beacon-monitor/internal/ai"
	"github.com/beacon-compliance/beacon-monitor/internal/api"
	"github.com/beacon-compliance/beacon-monitor/internal/config"
	"github.com/beacon-compliance/beacon-monitor/internal/digest"
	"github.com/beacon-compliance/beacon-monitor/internal/email"
	"github.com/beacon-compliance/beacon-monitor/internal/ingestion"
	"github.com/beacon-compliance/beacon-monitor/internal/logging"
	"github.com/beacon-compliance/beacon-monitor/internal/outbox"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
	"github.com/beacon-compliance/beacon-monitor/internal/scheduler"
	"github.com/beacon-compliance/beacon-monitor/internal/stats"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "beacon-monitor")

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := email.NewSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	analyzer, err := ai.NewAnalyzer(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model)
	if err != nil {
		logging.Fatalf("Failed to initialize analyzer: %v", err)
	}
	defer analyzer.Close()

	processor := ingestion.NewProcessor(db, db, db, cfg.Email.NotifyRecipient)
	digests := digest.NewGenerator(db, db, db, sender, 10)

	consumer := outbox.NewConsumer(db, db, sender,
		cfg.Outbox.Workers, cfg.Outbox.BufferSize, cfg.Outbox.PollInterval)
	consumer.Start(ctx)

	sched := scheduler.New(digests, db, db, cfg.Cron.DigestSpec, cfg.Retention.Days)
	if err := sched.Start(ctx); err != nil {
		logging.Fatalf("Failed to start scheduler: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	handler := api.NewHandler(api.Deps{
		Alerts:     db,
		Analyses:   db,
		Users:      db,
		Vendors:    db,
		Bodies:     db,
		Deliveries: db,
		Logs:       db,
		Stats:      stats.NewAggregator(db),
		StatsRepo:  db,
		Processor:  processor,
		Digests:    digests,
		Analyzer:   analyzer,
		Pinger:     db,
		CronSecret: cfg.Cron.Secret,

		EmailConfigured: cfg.Email.ResendAPIKey != "",
		Environment:     cfg.Server.Environment,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	sched.Stop()
	consumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
