// ABOUTME: Calendar MCP tool handlers
// ABOUTME: Implements exam_countdown and merged_timeline
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/schoolsync/models"
	"github.com/harperreed/schoolsync/timeline"
)

// ExamSource is satisfied by google.Service.
type ExamSource interface {
	ExamCountdown(ctx context.Context, userID string) []models.ExamCountdown
}

type CalendarHandlers struct {
	exams    ExamSource
	timeline *timeline.Builder
	now      func() time.Time
}

func NewCalendarHandlers(exams ExamSource, builder *timeline.Builder) *CalendarHandlers {
	return &CalendarHandlers{exams: exams, timeline: builder, now: time.Now}
}

type ExamCountdownInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Linked Google account (default demo-user)"`
}

type ExamOutput struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	DaysUntil int    `json:"days_until"`
}

type ExamCountdownOutput struct {
	Exams []ExamOutput `json:"exams"`
}

// ExamCountdown never fails: an unlinked account yields an empty list.
func (h *CalendarHandlers) ExamCountdown(ctx context.Context, _ *mcp.CallToolRequest, input ExamCountdownInput) (*mcp.CallToolResult, ExamCountdownOutput, error) {
	userID := input.UserID
	if userID == "" {
		userID = defaultUserID
	}
	out := ExamCountdownOutput{Exams: []ExamOutput{}}
	for _, e := range h.exams.ExamCountdown(ctx, userID) {
		out.Exams = append(out.Exams, ExamOutput{Title: e.Title, Date: formatTime(e.Date), DaysUntil: e.DaysUntil})
	}
	return nil, out, nil
}

type MergedTimelineInput struct {
	StartDate string `json:"start_date,omitempty" jsonschema:"Window start, RFC 3339 or YYYY-MM-DD (default now)"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"Window end, RFC 3339 or YYYY-MM-DD (default start plus 30 days)"`
}

type TimelineEventOutput struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	EventType string `json:"event_type"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location,omitempty"`
}

type MergedTimelineOutput struct {
	Events  []TimelineEventOutput `json:"events"`
	Sources []string              `json:"sources"`
}

func (h *CalendarHandlers) MergedTimeline(ctx context.Context, _ *mcp.CallToolRequest, input MergedTimelineInput) (*mcp.CallToolResult, MergedTimelineOutput, error) {
	start, end, err := timeline.ParseWindow(input.StartDate, input.EndDate, h.now())
	if err != nil {
		return nil, MergedTimelineOutput{}, err
	}
	merged, err := h.timeline.Build(ctx, start, end)
	if err != nil {
		return nil, MergedTimelineOutput{}, fmt.Errorf("failed to build timeline: %w", err)
	}

	out := MergedTimelineOutput{Events: make([]TimelineEventOutput, 0, len(merged.Data)), Sources: merged.Sources}
	for _, e := range merged.Data {
		out.Events = append(out.Events, TimelineEventOutput{
			Title:     e.Title,
			Source:    e.Source,
			EventType: e.EventType,
			StartTime: formatTime(e.StartTime),
			EndTime:   formatTime(e.EndTime),
			Location:  deref(e.Location),
		})
	}
	return nil, out, nil
}
