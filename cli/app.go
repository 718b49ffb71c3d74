// ABOUTME: Shared wiring for CLI commands: storage, SIS client, sync engine and Google services
// ABOUTME: Picks the queue-backed or inline runner from configuration
package cli

import (
	"context"
	"fmt"

	"github.com/harperreed/schoolsync/config"
	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/google"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/pronote"
	"github.com/harperreed/schoolsync/queue"
	schoolsync "github.com/harperreed/schoolsync/sync"
)

type App struct {
	Config       *config.Config
	DB           *db.DB
	Orchestrator *schoolsync.Orchestrator
	Google       *google.Service
}

// NewApp opens storage and builds the sync engine. Close releases the database.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	client, err := pronote.NewClient(pronote.OptionsFromConfig(cfg.Pronote))
	if err != nil {
		return nil, err
	}

	database, err := db.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logging.Info().Str("driver", database.Driver()).Str("pronote_mode", cfg.Pronote.Mode).Msg("Storage ready")

	auth := google.NewAuth(google.NewOAuthConfig(cfg.Google), db.NewTokenRepository(database))
	return &App{
		Config:       cfg,
		DB:           database,
		Orchestrator: schoolsync.NewOrchestrator(client, database, cfg.Pronote.DefaultEstimateMinutes),
		Google:       google.NewService(auth, database),
	}, nil
}

// DurableStorage points an unconfigured store at the XDG data file so one-shot commands keep their data.
func DurableStorage(cfg *config.Config) {
	if cfg.Storage.DatabaseURL == "" && cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = db.DefaultPath()
	}
}

// Runner returns the queue runner when a broker is configured, else an inline runner.
// The queue runner is also returned so the caller can consume and close it.
func (a *App) Runner() (queue.JobRunner, *queue.QueueRunner, error) {
	if !a.Config.QueueEnabled() {
		return queue.NewInlineRunner(a.Orchestrator), nil, nil
	}
	qr, err := queue.NewNATSQueueRunner(a.Config.Queue, a.Orchestrator)
	if err != nil {
		return nil, nil, err
	}
	return qr, qr, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
