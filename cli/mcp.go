// ABOUTME: MCP server subcommand
// ABOUTME: Serves school data and sync tools to an assistant over stdio
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/handlers"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/queue"
	"github.com/harperreed/schoolsync/timeline"
)

// Version is reported by --version and the MCP handshake.
const Version = "0.2.0"

// NewMCPServer registers every tool, resource and prompt against app.
func NewMCPServer(app *App, trigger handlers.SyncTrigger) *mcp.Server {
	schoolHandlers := handlers.NewSchoolHandlers(app.DB)
	syncHandlers := handlers.NewSyncHandlers(trigger)
	calendarHandlers := handlers.NewCalendarHandlers(app.Google, timeline.NewBuilder(
		db.NewCalendarEventRepository(app.DB),
		db.NewSchoolRepository(app.DB),
	))
	resourceHandlers := handlers.NewResourceHandlers(app.DB)
	promptHandlers := handlers.NewPromptHandlers(app.DB)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "schoolsync",
		Version: Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List homework tasks, optionally only those due soon or for one subject",
	}, schoolHandlers.ListTasks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard_summary",
		Description: "Get tasks, deadlines, grades, lessons and timetable in one call",
	}, schoolHandlers.DashboardSummary)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "trigger_sync",
		Description: "Pull fresh data from the school information system",
	}, syncHandlers.TriggerSync)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "exam_countdown",
		Description: "List upcoming exams from the linked Google Calendar with days remaining",
	}, calendarHandlers.ExamCountdown)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merged_timeline",
		Description: "Calendar events and school lessons in one time-ordered list",
	}, calendarHandlers.MergedTimeline)

	for _, r := range handlers.Resources {
		server.AddResource(r, resourceHandlers.ReadResource)
	}
	for _, p := range handlers.Prompts {
		server.AddPrompt(p, promptHandlers.GetPrompt)
	}
	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, app *App) error {
	runner, qr, err := app.Runner()
	if err != nil {
		return err
	}
	if qr != nil {
		defer closeRunner(qr)
	}
	scheduler, err := queue.NewScheduler(runner, app.Config.Sync.CronSchedule, false)
	if err != nil {
		return err
	}

	logging.Info().Str("runner", runner.Name()).Msg("Starting schoolsync MCP server")
	return NewMCPServer(app, scheduler).Run(ctx, &mcp.StdioTransport{})
}
