// ABOUTME: Entry point for the schoolsync service and CLI
// ABOUTME: Loads configuration, sets up logging and routes to a subcommand
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/schoolsync/cli"
	"github.com/harperreed/schoolsync/config"
	"github.com/harperreed/schoolsync/logging"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "SQLite path (overrides SQLITE_PATH)")
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("schoolsync version %s\n", cli.Version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}
	command, commandArgs := args[0], args[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.LogFormat(),
		Timestamp: true,
		Output:    os.Stderr,
	})

	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	switch command {
	case "sync", "mcp", "google-login":
		cli.DurableStorage(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, command, commandArgs); err != nil {
		logging.Error().Err(err).Str("command", command).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	var cmd func(context.Context, *cli.App, []string) error
	switch command {
	case "serve":
		cmd = cli.ServeCommand
	case "worker":
		cmd = cli.WorkerCommand
	case "sync":
		cmd = cli.SyncCommand
	case "google-login":
		cmd = cli.GoogleLoginCommand
	case "mcp":
		cmd = func(ctx context.Context, app *cli.App, _ []string) error { return cli.MCPCommand(ctx, app) }
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	return cmd(ctx, app, args)
}

func printUsage() {
	fmt.Printf(`schoolsync v%s - school information system sync service

USAGE:
  schoolsync [global flags] <command> [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       SQLite database path

COMMANDS:
  serve                  Run the HTTP API and sync scheduler
    --no-worker            With QUEUE_URL set, enqueue jobs without consuming them
  worker                 Consume queued sync jobs (requires QUEUE_URL)
  sync                   Run one full sync now and print the counts
  google-login           Link a Google account through the browser
    --user <id>            User to link (default: demo-user)
    --port <n>             Local callback port (default: 8085)
    --no-browser           Only print the consent URL
  mcp                    Start the MCP server on stdio

CONFIGURATION:
  Settings come from the environment or a .env file, for example
  PORT, DATABASE_URL, SQLITE_PATH, QUEUE_URL, SYNC_CRON_SCHEDULE,
  PRONOTE_API_MODE, PRONOTE_BASE_URL, GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET.

`, cli.Version)
}
