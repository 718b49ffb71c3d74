// ABOUTME: MCP prompt handlers for study planning workflows
// ABOUTME: Builds prompts from the synced dashboard so the model plans against real deadlines
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/models"
)

// Prompts lists the templates GetPrompt serves.
var Prompts = []*mcp.Prompt{
	{Name: "study-plan", Description: "Plan the coming days around homework and deadlines"},
	{Name: "grade-review", Description: "Review recent grades against class averages"},
}

type PromptHandlers struct {
	repo *db.SchoolRepository
}

func NewPromptHandlers(database *db.DB) *PromptHandlers {
	return &PromptHandlers{repo: db.NewSchoolRepository(database)}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	summary, err := h.repo.GetDashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	switch request.Params.Name {
	case "study-plan":
		return studyPlanPrompt(summary), nil
	case "grade-review":
		return gradeReviewPrompt(summary), nil
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func studyPlanPrompt(s *models.DashboardSummary) *mcp.GetPromptResult {
	var b strings.Builder
	b.WriteString("Please build a study plan for the coming days.\n\n")

	b.WriteString(fmt.Sprintf("Homework (%d):\n", len(s.Tasks)))
	for _, t := range s.Tasks {
		due := "no due date"
		if t.DueDate != nil {
			due = "due " + t.DueDate.UTC().Format(time.DateOnly)
		}
		b.WriteString(fmt.Sprintf("- %s (%s, about %d min)\n", t.Title, due, t.EstimatedMinutes))
	}
	if len(s.Deadlines) > 0 {
		b.WriteString("\nDeadlines:\n")
		for _, d := range s.Deadlines {
			b.WriteString(fmt.Sprintf("- %s on %s\n", d.Label, d.DueDate.UTC().Format(time.DateOnly)))
		}
	}
	if len(s.Lessons) > 0 {
		b.WriteString("\nUpcoming lessons:\n")
		for _, l := range s.Lessons {
			b.WriteString(fmt.Sprintf("- %s at %s\n", l.Subject, l.StartTime.UTC().Format("2006-01-02 15:04")))
		}
	}

	b.WriteString("\nPlease suggest:")
	b.WriteString("\n1. A day-by-day schedule that finishes each task before it is due")
	b.WriteString("\n2. Which deadlines need preparation to start now")

	return &mcp.GetPromptResult{
		Description: "Study plan",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}
}

func gradeReviewPrompt(s *models.DashboardSummary) *mcp.GetPromptResult {
	var b strings.Builder
	b.WriteString("Please review these grades:\n\n")
	if len(s.Grades) == 0 {
		b.WriteString("No grades recorded yet.\n")
	}
	for _, g := range s.Grades {
		b.WriteString(fmt.Sprintf("- %s: %g/%g", g.Subject, g.Score, g.OutOf))
		if g.Average != nil {
			b.WriteString(fmt.Sprintf(" (class average %g)", *g.Average))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPoint out strong subjects and where extra practice would help most.")

	return &mcp.GetPromptResult{
		Description: "Grade review",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}
}
