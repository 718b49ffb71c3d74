package google

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/models"
)

func sampleTask() *models.Task {
	desc := "Exercises 1 to 4"
	due := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	return &models.Task{
		ID:               "task-1",
		Source:           models.SourcePronote,
		SourceID:         "hw-1",
		Title:            "Algebra worksheet",
		Description:      &desc,
		DueDate:          &due,
		EstimatedMinutes: 45,
	}
}

func TestNoteContentLayout(t *testing.T) {
	content := NoteContent(sampleTask())

	assert.Equal(t, "Task: Algebra worksheet\n\n"+
		"Description:\nExercises 1 to 4\n\n"+
		"Due Date: Wed, 04 Mar 2026 08:00 UTC\n"+
		"Estimated Time: 45 minutes\n"+
		"Source: pronote\n\n"+
		"--- Task Notes ---\n"+
		"Add your notes here...\n", content)

	bare := &models.Task{Title: "Read", EstimatedMinutes: 30, Source: models.SourcePronote}
	assert.NotContains(t, NoteContent(bare), "Description:")
	assert.NotContains(t, NoteContent(bare), "Due Date:")
}

func TestSyncTaskNoteRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.SyncTaskNote(context.Background(), sampleTask(), "demo-user")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, env.fake.created)
}

func TestSyncTaskNoteCreatesThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "demo-user")
	ctx := context.Background()
	task := sampleTask()

	first, err := env.service.SyncTaskNote(ctx, task, "demo-user")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", first.DocID)
	assert.Equal(t, "https://docs.google.com/document/d/doc-1/edit", first.URL)
	assert.Equal(t, []string{"Task: Algebra worksheet"}, env.fake.created)
	assert.Equal(t, NoteContent(task), env.fake.docs["doc-1"])

	task.Title = "Algebra worksheet v2"
	second, err := env.service.SyncTaskNote(ctx, task, "demo-user")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, env.fake.created, 1, "existing document is rewritten, not recreated")
	assert.Equal(t, NoteContent(task), env.fake.docs["doc-1"])

	last := env.fake.batches[len(env.fake.batches)-1]
	require.Len(t, last.Requests, 2)
	require.NotNil(t, last.Requests[0].DeleteContentRange)
	assert.Equal(t, int64(1), last.Requests[0].DeleteContentRange.Range.StartIndex)
	assert.Equal(t, int64(1+len(NoteContent(sampleTask()))), last.Requests[0].DeleteContentRange.Range.EndIndex)
	assert.Equal(t, int64(1), last.Requests[1].InsertText.Location.Index)

	note, err := db.NewTaskNoteRepository(env.db).GetTaskNoteByTaskID(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, NoteContent(task), note.Content)
	assert.Equal(t, "doc-1", *note.GoogleDocID)
}

func TestTaskNoteReadsDocumentContent(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "demo-user")
	ctx := context.Background()

	_, err := env.service.TaskNote(ctx, "task-1", "demo-user")
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = env.service.SyncTaskNote(ctx, sampleTask(), "demo-user")
	require.NoError(t, err)
	env.fake.docs["doc-1"] = "edited in the doc\n"

	note, err := env.service.TaskNote(ctx, "task-1", "demo-user")
	require.NoError(t, err)
	assert.Equal(t, "edited in the doc\n", note.Content)

	// Disconnected users get the stored copy.
	require.NoError(t, env.service.Disconnect(ctx, "demo-user"))
	env.fake.docs["doc-1"] = "ignored"
	note, err = env.service.TaskNote(ctx, "task-1", "demo-user")
	require.NoError(t, err)
	assert.Equal(t, "edited in the doc\n", note.Content)
}

func TestSyncCalendarEventsStoresUpcomingEvents(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "demo-user")
	ctx := context.Background()
	env.fake.events = []map[string]any{
		{
			"id": "g1", "summary": "Piano lesson", "location": "Music school", "status": "confirmed",
			"start": map[string]any{"dateTime": "2026-03-02T16:00:00Z"},
			"end":   map[string]any{"dateTime": "2026-03-02T17:00:00Z"},
		},
		{
			"id":    "g2",
			"start": map[string]any{"date": "2026-03-05"},
			"end":   map[string]any{"date": "2026-03-06"},
		},
	}

	count, err := env.service.SyncCalendarEvents(ctx, "demo-user", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	q := env.fake.eventQueries[0]
	assert.Equal(t, "true", q["singleEvents"])
	assert.Equal(t, "startTime", q["orderBy"])
	assert.Equal(t, "50", q["maxResults"])
	assert.Equal(t, "Bearer access-demo-user", q["auth"])
	assert.Equal(t, "2026-03-01T09:00:00Z", q["timeMin"])
	assert.Equal(t, "2026-03-31T09:00:00Z", q["timeMax"])

	_, err = env.service.SyncCalendarEvents(ctx, "demo-user", 30)
	require.NoError(t, err)

	stored, err := db.NewCalendarEventRepository(env.db).GetAllEvents(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Untitled Event", stored[0].Title)
	assert.Equal(t, "Piano lesson", stored[1].Title)

	state, err := db.GetSyncState(ctx, env.db, "google-calendar:demo-user")
	require.NoError(t, err)
	assert.Equal(t, db.SyncStatusIdle, state.Status)
}

func TestSyncCalendarEventsFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.SyncCalendarEvents(ctx, "demo-user", 30)
	assert.ErrorIs(t, err, ErrNoToken)

	env.connect(t, "demo-user")
	env.fake.failCalendar = true
	_, err = env.service.SyncCalendarEvents(ctx, "demo-user", 30)
	require.Error(t, err)

	state, err := db.GetSyncState(ctx, env.db, "google-calendar:demo-user")
	require.NoError(t, err)
	assert.Equal(t, db.SyncStatusError, state.Status)
	require.NotNil(t, state.ErrorMessage)
}

func TestExamCountdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty := env.service.ExamCountdown(ctx, "demo-user")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	env.connect(t, "demo-user")
	env.fake.events = []map[string]any{
		{
			"id": "x1", "summary": "Math exam",
			"start": map[string]any{"dateTime": env.now.Add(36 * time.Hour).Format(time.RFC3339)},
			"end":   map[string]any{"dateTime": env.now.Add(38 * time.Hour).Format(time.RFC3339)},
		},
		{
			"id": "x2", "summary": "History quiz",
			"start": map[string]any{"dateTime": env.now.Add(7 * 24 * time.Hour).Format(time.RFC3339)},
			"end":   map[string]any{"dateTime": env.now.Add(7*24*time.Hour + time.Hour).Format(time.RFC3339)},
		},
	}

	countdown := env.service.ExamCountdown(ctx, "demo-user")
	require.Len(t, countdown, 2)
	assert.Equal(t, "Math exam", countdown[0].Title)
	assert.Equal(t, 2, countdown[0].DaysUntil)
	assert.Equal(t, 7, countdown[1].DaysUntil)
	assert.Equal(t, examQuery, env.fake.eventQueries[0]["q"])
	assert.Equal(t, "2026-09-01T09:00:00Z", env.fake.eventQueries[0]["timeMax"])

	env.fake.failCalendar = true
	assert.Empty(t, env.service.ExamCountdown(ctx, "demo-user"))
}

func TestDriveFiles(t *testing.T) {
	env := newTestEnv(t)
	env.connect(t, "demo-user")
	ctx := context.Background()
	env.fake.files = []map[string]any{
		{"id": "f1", "name": "O'Brien notes", "mimeType": "application/pdf", "size": "2048"},
	}

	files, err := env.service.DriveFiles(ctx, "demo-user", "O'Brien")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(2048), files[0].Size)
	assert.Equal(t, `name contains 'O\'Brien' and trashed = false|20`, env.fake.driveQueries[0])

	_, err = env.service.DriveFiles(ctx, "demo-user", "")
	require.NoError(t, err)
	assert.Equal(t, "|10", env.fake.driveQueries[1])

	d, err := env.service.drive(ctx, "demo-user")
	require.NoError(t, err)
	file, err := d.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "O'Brien notes", file.Name)
}

func TestMapGoogleEventDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ev := mapGoogleEvent(&calendar.Event{}, now)

	assert.Equal(t, "Untitled Event", ev.Title)
	assert.NotEmpty(t, ev.SourceID)
	assert.Equal(t, now, ev.StartTime)
	assert.Equal(t, models.EventTypeCalendar, ev.EventType)
	assert.Nil(t, ev.Description)
	assert.Nil(t, ev.Location)
}
