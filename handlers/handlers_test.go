// ABOUTME: Tests for the school MCP tools, resources and prompts
// ABOUTME: Populates an in-memory store with the demo data set before each case
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/schoolsync/config"
	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/models"
	"github.com/harperreed/schoolsync/pronote"
	schoolsync "github.com/harperreed/schoolsync/sync"
	"github.com/harperreed/schoolsync/timeline"
)

func setupTestDB(t *testing.T, synced bool) *db.DB {
	t.Helper()
	database, err := db.Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	if synced {
		orch := schoolsync.NewOrchestrator(pronote.NewMockClient(time.Now()), database, 45)
		_, err := orch.RunFullSync(context.Background(), "test")
		require.NoError(t, err)
	}
	return database
}

func TestListTasks(t *testing.T) {
	h := NewSchoolHandlers(setupTestDB(t, true))
	ctx := context.Background()

	_, out, err := h.ListTasks(ctx, nil, ListTasksInput{})
	require.NoError(t, err)
	require.Len(t, out.Tasks, 2)
	assert.Equal(t, "hw-math-001", out.Tasks[0].ReferenceID)
	assert.Equal(t, 45, out.Tasks[0].EstimatedMinutes)

	_, out, err = h.ListTasks(ctx, nil, ListTasksInput{DueWithinDays: 3})
	require.NoError(t, err)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "hw-math-001", out.Tasks[0].ReferenceID)

	_, out, err = h.ListTasks(ctx, nil, ListTasksInput{Subject: "History"})
	require.NoError(t, err)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "hw-hist-002", out.Tasks[0].ReferenceID)

	_, out, err = h.ListTasks(ctx, nil, ListTasksInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.Tasks, 1)
}

func TestListTasksEmptyStore(t *testing.T) {
	h := NewSchoolHandlers(setupTestDB(t, false))
	_, out, err := h.ListTasks(context.Background(), nil, ListTasksInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Tasks)
	assert.Empty(t, out.Tasks)
}

func TestDashboardSummary(t *testing.T) {
	h := NewSchoolHandlers(setupTestDB(t, true))
	_, out, err := h.DashboardSummary(context.Background(), nil, DashboardSummaryInput{})
	require.NoError(t, err)
	assert.Len(t, out.Tasks, 2)
	assert.Len(t, out.Deadlines, 1)
	assert.Len(t, out.Grades, 1)
	assert.Len(t, out.Lessons, 1)
	assert.Len(t, out.Timetable, 1)
	assert.Equal(t, "Dr. Curie", out.Lessons[0].Teacher)
	assert.Equal(t, "Physics mid-term exam", out.Deadlines[0].Label)
}

type fakeTrigger struct {
	reasons []string
	err     error
}

func (f *fakeTrigger) TriggerManualSync(_ context.Context, reason string) (*models.SyncResult, error) {
	f.reasons = append(f.reasons, reason)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SyncResult{TriggeredBy: reason, Tasks: 2}, nil
}

func TestTriggerSync(t *testing.T) {
	trigger := &fakeTrigger{}
	h := NewSyncHandlers(trigger)

	_, out, err := h.TriggerSync(context.Background(), nil, TriggerSyncInput{})
	require.NoError(t, err)
	assert.Equal(t, "mcp", out.TriggeredBy)
	assert.Equal(t, 2, out.Tasks)

	_, _, err = h.TriggerSync(context.Background(), nil, TriggerSyncInput{Reason: "homework check"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mcp", "homework check"}, trigger.reasons)

	trigger.err = errors.New("sis unavailable")
	_, _, err = h.TriggerSync(context.Background(), nil, TriggerSyncInput{})
	assert.ErrorContains(t, err, "sis unavailable")
}

type fakeExams struct {
	users []string
	exams []models.ExamCountdown
}

func (f *fakeExams) ExamCountdown(_ context.Context, userID string) []models.ExamCountdown {
	f.users = append(f.users, userID)
	return f.exams
}

func TestExamCountdownDefaultsUser(t *testing.T) {
	exams := &fakeExams{}
	database := setupTestDB(t, false)
	h := NewCalendarHandlers(exams, timeline.NewBuilder(db.NewCalendarEventRepository(database), db.NewSchoolRepository(database)))

	_, out, err := h.ExamCountdown(context.Background(), nil, ExamCountdownInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Exams)
	assert.Empty(t, out.Exams)
	assert.Equal(t, []string{"demo-user"}, exams.users)

	exams.exams = []models.ExamCountdown{{Title: "Physics exam", DaysUntil: 3, Date: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}}
	_, out, err = h.ExamCountdown(context.Background(), nil, ExamCountdownInput{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, out.Exams, 1)
	assert.Equal(t, ExamOutput{Title: "Physics exam", Date: "2026-03-04T09:00:00Z", DaysUntil: 3}, out.Exams[0])
	assert.Equal(t, "alice", exams.users[1])
}

func TestMergedTimeline(t *testing.T) {
	database := setupTestDB(t, true)
	h := NewCalendarHandlers(&fakeExams{}, timeline.NewBuilder(db.NewCalendarEventRepository(database), db.NewSchoolRepository(database)))

	_, out, err := h.MergedTimeline(context.Background(), nil, MergedTimelineInput{})
	require.NoError(t, err)
	assert.Equal(t, timeline.Sources, out.Sources)
	require.Len(t, out.Events, 1)
	assert.Equal(t, models.EventTypeLesson, out.Events[0].EventType)
	assert.Equal(t, "Lab 2", out.Events[0].Location)

	_, _, err = h.MergedTimeline(context.Background(), nil, MergedTimelineInput{StartDate: "not-a-date"})
	assert.Error(t, err)
}

func readResource(t *testing.T, h *ResourceHandlers, uri string) string {
	t.Helper()
	res, err := h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, uri, res.Contents[0].URI)
	return res.Contents[0].Text
}

func TestReadResources(t *testing.T) {
	h := NewResourceHandlers(setupTestDB(t, true))

	var tasks []models.Task
	require.NoError(t, json.Unmarshal([]byte(readResource(t, h, "school://tasks")), &tasks))
	assert.Len(t, tasks, 2)

	var summary models.DashboardSummary
	require.NoError(t, json.Unmarshal([]byte(readResource(t, h, "school://dashboard")), &summary))
	assert.Len(t, summary.Grades, 1)

	var states []db.SyncState
	require.NoError(t, json.Unmarshal([]byte(readResource(t, h, "school://sync-status")), &states))
	require.Len(t, states, 1)
	assert.Equal(t, "pronote", states[0].Service)

	_, err := h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "file:///tasks"}})
	assert.Error(t, err)
	_, err = h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "school://unknown"}})
	assert.Error(t, err)
}

func TestGetPrompt(t *testing.T) {
	h := NewPromptHandlers(setupTestDB(t, true))

	res, err := h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "study-plan"}})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Homework (2)")
	assert.Contains(t, text, "Physics mid-term exam")

	res, err = h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "grade-review"}})
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(*mcp.TextContent).Text, "French: 15/20 (class average 12)")

	_, err = h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "nope"}})
	assert.Error(t, err)
}
