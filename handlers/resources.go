// ABOUTME: MCP resource handlers for exposing synced school data
// ABOUTME: Provides read-only JSON views of tasks, the dashboard and sync status via school:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/schoolsync/db"
)

const (
	resourceScheme = "school://"
	defaultUserID  = "demo-user"
)

// Resources lists the URIs ReadResource serves.
var Resources = []*mcp.Resource{
	{URI: "school://tasks", Name: "tasks", Description: "All homework tasks", MIMEType: "application/json"},
	{URI: "school://dashboard", Name: "dashboard", Description: "Tasks, deadlines, grades, lessons and timetable", MIMEType: "application/json"},
	{URI: "school://sync-status", Name: "sync-status", Description: "Last sync state per service", MIMEType: "application/json"},
}

type ResourceHandlers struct {
	db   *db.DB
	repo *db.SchoolRepository
}

func NewResourceHandlers(database *db.DB) *ResourceHandlers {
	return &ResourceHandlers{db: database, repo: db.NewSchoolRepository(database)}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	var (
		data any
		err  error
	)
	switch strings.TrimPrefix(uri, resourceScheme) {
	case "tasks":
		data, err = h.repo.GetTasks(ctx)
	case "dashboard":
		data, err = h.repo.GetDashboard(ctx)
	case "sync-status":
		data, err = db.GetAllSyncStates(ctx, h.db)
	default:
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}

	text, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(text),
		},
	}}, nil
}
