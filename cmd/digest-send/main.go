// digest-send is a one-shot digest fan-out for use from external cron or by
// hand. It sends the daily digest to every user with an email and exits.
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"github.com/beacon-compliance/beacon-monitor/internal/config"
	"github.com/beacon-compliance/beacon-monitor/internal/digest"
	"github.com/beacon-compliance/beacon-monitor/internal/email"
	"github.com/beacon-compliance/beacon-monitor/internal/logging"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "digest-send")

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	sender := email.NewSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	digests := digest.NewGenerator(db, db, db, sender, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	res, err := digests.SendToAll(ctx)
	if err != nil {
		logging.Fatalf("Digest run failed: %v", err)
	}

	slog.Info("digest run finished", "total", res.Total, "success", res.Success, "errors", res.Errors)
}
