// ABOUTME: serve and worker subcommands
// ABOUTME: Runs the HTTP API, scheduler and queue worker under one supervisor tree
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/harperreed/schoolsync/api"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/queue"
	"github.com/harperreed/schoolsync/supervisor"
)

// ServeCommand runs until ctx is cancelled.
func ServeCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	noWorker := fs.Bool("no-worker", false, "Enqueue jobs without consuming them (queue mode only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runner, qr, err := app.Runner()
	if err != nil {
		return err
	}
	if qr != nil {
		defer closeRunner(qr)
	}

	scheduler, err := queue.NewScheduler(runner, app.Config.Sync.CronSchedule, app.Config.Sync.RunInitialOnStartup)
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Deps{DB: app.DB, Trigger: scheduler, Google: app.Google}, api.Options{
		CORSOrigins:   app.Config.Server.CORSOrigins,
		SyncRateLimit: app.Config.Server.SyncRateLimit,
	})
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{ShutdownTimeout: app.Config.Server.ShutdownTimeout})
	tree.AddAPIService(api.NewHTTPService(server, app.Config.Addr(), app.Config.Server.ShutdownTimeout))
	tree.AddSyncService(scheduler)
	if qr != nil && !*noWorker {
		tree.AddSyncService(supervisor.NewWorkerService(qr))
	}

	logging.Info().
		Str("addr", app.Config.Addr()).
		Str("runner", runner.Name()).
		Str("schedule", app.Config.Sync.CronSchedule).
		Msg("Starting schoolsync")
	return ignoreCancel(tree.Serve(ctx))
}

// WorkerCommand consumes queued sync jobs without serving HTTP.
func WorkerCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !app.Config.QueueEnabled() {
		return fmt.Errorf("worker requires QUEUE_URL")
	}

	_, qr, err := app.Runner()
	if err != nil {
		return err
	}
	defer closeRunner(qr)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{ShutdownTimeout: app.Config.Server.ShutdownTimeout})
	tree.AddSyncService(supervisor.NewWorkerService(qr))
	logging.Info().Str("topic", app.Config.Queue.Topic).Msg("Starting sync worker")
	return ignoreCancel(tree.Serve(ctx))
}

func closeRunner(qr *queue.QueueRunner) {
	if err := qr.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close queue runner")
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
