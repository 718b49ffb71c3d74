// ABOUTME: Sync MCP tool handler
// ABOUTME: Implements trigger_sync, which runs inline or enqueues depending on the runner
package handlers

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/schoolsync/models"
)

// SyncTrigger is satisfied by queue.Scheduler.
type SyncTrigger interface {
	TriggerManualSync(ctx context.Context, reason string) (*models.SyncResult, error)
}

type SyncHandlers struct {
	trigger SyncTrigger
}

func NewSyncHandlers(trigger SyncTrigger) *SyncHandlers {
	return &SyncHandlers{trigger: trigger}
}

type TriggerSyncInput struct {
	Reason string `json:"reason,omitempty" jsonschema:"Label recorded for this run (default mcp)"`
}

func (h *SyncHandlers) TriggerSync(ctx context.Context, _ *mcp.CallToolRequest, input TriggerSyncInput) (*mcp.CallToolResult, models.SyncResult, error) {
	reason := input.Reason
	if reason == "" {
		reason = "mcp"
	}
	result, err := h.trigger.TriggerManualSync(ctx, reason)
	if err != nil {
		return nil, models.SyncResult{}, fmt.Errorf("sync failed: %w", err)
	}
	return nil, *result, nil
}
