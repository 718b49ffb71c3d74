// ABOUTME: School data MCP tool handlers
// ABOUTME: Implements list_tasks and dashboard_summary over the synced repository
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/models"
)

type SchoolHandlers struct {
	repo *db.SchoolRepository
	now  func() time.Time
}

func NewSchoolHandlers(database *db.DB) *SchoolHandlers {
	return &SchoolHandlers{repo: db.NewSchoolRepository(database), now: time.Now}
}

type ListTasksInput struct {
	DueWithinDays int    `json:"due_within_days,omitempty" jsonschema:"Only tasks due within this many days (0 for all)"`
	Subject       string `json:"subject,omitempty" jsonschema:"Only tasks for this subject"`
	Limit         int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50)"`
}

type TaskOutput struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	DueDate          string `json:"due_date,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	ReferenceID      string `json:"reference_id"`
}

type ListTasksOutput struct {
	Tasks []TaskOutput `json:"tasks"`
}

func (h *SchoolHandlers) ListTasks(ctx context.Context, _ *mcp.CallToolRequest, input ListTasksInput) (*mcp.CallToolResult, ListTasksOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	tasks, err := h.repo.GetTasks(ctx)
	if err != nil {
		return nil, ListTasksOutput{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	var cutoff time.Time
	if input.DueWithinDays > 0 {
		cutoff = h.now().AddDate(0, 0, input.DueWithinDays)
	}

	out := ListTasksOutput{Tasks: []TaskOutput{}}
	for _, t := range tasks {
		if len(out.Tasks) == limit {
			break
		}
		if !cutoff.IsZero() && (t.DueDate == nil || t.DueDate.After(cutoff)) {
			continue
		}
		if input.Subject != "" && t.Metadata["subject"] != input.Subject {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	return nil, out, nil
}

type DashboardSummaryInput struct{}

type DeadlineOutput struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	DueDate string `json:"due_date"`
}

type GradeOutput struct {
	Subject    string   `json:"subject"`
	Score      float64  `json:"score"`
	OutOf      float64  `json:"out_of"`
	Average    *float64 `json:"average,omitempty"`
	RecordedAt string   `json:"recorded_at"`
}

type LessonOutput struct {
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher,omitempty"`
	Room      string `json:"room,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type TimetableOutput struct {
	Title     string `json:"title"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type DashboardSummaryOutput struct {
	Tasks     []TaskOutput      `json:"tasks"`
	Deadlines []DeadlineOutput  `json:"deadlines"`
	Grades    []GradeOutput     `json:"grades"`
	Lessons   []LessonOutput    `json:"lessons"`
	Timetable []TimetableOutput `json:"timetable"`
}

func (h *SchoolHandlers) DashboardSummary(ctx context.Context, _ *mcp.CallToolRequest, _ DashboardSummaryInput) (*mcp.CallToolResult, DashboardSummaryOutput, error) {
	summary, err := h.repo.GetDashboard(ctx)
	if err != nil {
		return nil, DashboardSummaryOutput{}, fmt.Errorf("failed to load dashboard: %w", err)
	}

	out := DashboardSummaryOutput{
		Tasks:     make([]TaskOutput, 0, len(summary.Tasks)),
		Deadlines: make([]DeadlineOutput, 0, len(summary.Deadlines)),
		Grades:    make([]GradeOutput, 0, len(summary.Grades)),
		Lessons:   make([]LessonOutput, 0, len(summary.Lessons)),
		Timetable: make([]TimetableOutput, 0, len(summary.Timetable)),
	}
	for _, t := range summary.Tasks {
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	for _, d := range summary.Deadlines {
		out.Deadlines = append(out.Deadlines, DeadlineOutput{ID: d.ID, Label: d.Label, DueDate: formatTime(d.DueDate)})
	}
	for _, g := range summary.Grades {
		out.Grades = append(out.Grades, GradeOutput{
			Subject:    g.Subject,
			Score:      g.Score,
			OutOf:      g.OutOf,
			Average:    g.Average,
			RecordedAt: formatTime(g.RecordedAt),
		})
	}
	for _, l := range summary.Lessons {
		out.Lessons = append(out.Lessons, LessonOutput{
			Subject:   l.Subject,
			Teacher:   deref(l.Teacher),
			Room:      deref(l.Room),
			StartTime: formatTime(l.StartTime),
			EndTime:   formatTime(l.EndTime),
		})
	}
	for _, e := range summary.Timetable {
		out.Timetable = append(out.Timetable, TimetableOutput{Title: e.Title, Day: e.Day, StartTime: e.StartTime, EndTime: e.EndTime})
	}
	return nil, out, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func taskToOutput(t models.Task) TaskOutput {
	out := TaskOutput{
		ID:               t.ID,
		Title:            t.Title,
		EstimatedMinutes: t.EstimatedMinutes,
		ReferenceID:      t.Origin.ReferenceID,
	}
	out.Description = deref(t.Description)
	if t.DueDate != nil {
		out.DueDate = formatTime(*t.DueDate)
	}
	return out
}
