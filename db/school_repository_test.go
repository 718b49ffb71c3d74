package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/schoolsync/models"
)

func strPtr(s string) *string { return &s }

func sampleTask(sourceID string, due *time.Time) models.Task {
	return models.Task{
		Source:           "pronote",
		SourceID:         sourceID,
		Title:            "Maths homework",
		Description:      strPtr("Exercises 1-4"),
		DueDate:          due,
		EstimatedMinutes: 45,
		Origin:           models.TaskOrigin{System: "pronote", Category: "homework", ReferenceID: sourceID},
		Metadata:         models.Metadata{"subject": "Maths"},
	}
}

func TestUpsertTasksIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))
	due := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	first := []models.Task{sampleTask("hw-1", &due)}
	require.NoError(t, repo.UpsertTasks(ctx, first))
	firstID := first[0].ID
	require.NotEmpty(t, firstID)

	updated := sampleTask("hw-1", &due)
	updated.Description = strPtr("Exercises 1-8")
	updated.EstimatedMinutes = 60
	second := []models.Task{updated}
	require.NoError(t, repo.UpsertTasks(ctx, second))

	tasks, err := repo.GetTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, firstID, tasks[0].ID, "identity must survive an upsert")
	assert.Equal(t, firstID, second[0].ID)
	assert.Equal(t, "Exercises 1-8", *tasks[0].Description)
	assert.Equal(t, 60, tasks[0].EstimatedMinutes)
	assert.Equal(t, "homework", tasks[0].Origin.Category)
	assert.Equal(t, "Maths", tasks[0].Metadata["subject"])
	assert.True(t, tasks[0].DueDate.Equal(due))
}

func TestUpsertRefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))
	clock := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	require.NoError(t, repo.UpsertTasks(ctx, []models.Task{sampleTask("hw-1", nil)}))
	clock = clock.Add(time.Hour)
	require.NoError(t, repo.UpsertTasks(ctx, []models.Task{sampleTask("hw-1", nil)}))

	tasks, err := repo.GetTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].CreatedAt.Equal(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, tasks[0].UpdatedAt.Equal(clock))
}

func TestGetTasksOrdersByDueDateNullsLast(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertTasks(ctx, []models.Task{
		sampleTask("undated", nil),
		sampleTask("late", &late),
		sampleTask("early", &early),
	}))

	tasks, err := repo.GetTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "early", tasks[0].SourceID)
	assert.Equal(t, "late", tasks[1].SourceID)
	assert.Equal(t, "undated", tasks[2].SourceID)
	assert.Nil(t, tasks[2].DueDate)
}

func TestGetTask(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))

	tasks := []models.Task{sampleTask("hw-1", nil)}
	require.NoError(t, repo.UpsertTasks(ctx, tasks))

	got, err := repo.GetTask(ctx, tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hw-1", got.SourceID)

	_, err = repo.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptOriginFallsBack(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := NewSchoolRepository(database)

	tasks := []models.Task{sampleTask("hw-1", nil)}
	require.NoError(t, repo.UpsertTasks(ctx, tasks))
	_, err := database.ExecContext(ctx, `UPDATE tasks SET origin = ? WHERE id = ?`, "{broken", tasks[0].ID)
	require.NoError(t, err)

	got, err := repo.GetTasks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hw-1", got[0].SourceID)
	assert.Equal(t, models.TaskOrigin{System: "pronote"}, got[0].Origin)
	assert.Equal(t, "{broken", got[0].Metadata["origin_raw"])
	assert.Equal(t, "Maths", got[0].Metadata["subject"])
}

func TestReadsReturnEmptySlices(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))

	summary, err := repo.GetDashboard(ctx)
	require.NoError(t, err)
	assert.NotNil(t, summary.Tasks)
	assert.Empty(t, summary.Tasks)
	assert.NotNil(t, summary.Deadlines)
	assert.NotNil(t, summary.Grades)
	assert.NotNil(t, summary.Lessons)
	assert.NotNil(t, summary.Timetable)
}

func TestUpsertOtherCollections(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	avg := 12.0

	require.NoError(t, repo.UpsertDeadlines(ctx, []models.Deadline{
		{Source: "pronote", SourceID: "d-2", Label: "Later", DueDate: now.Add(48 * time.Hour), Metadata: models.Metadata{}},
		{Source: "pronote", SourceID: "d-1", Label: "Sooner", DueDate: now.Add(24 * time.Hour), Metadata: models.Metadata{"details": "pens"}},
	}))
	require.NoError(t, repo.UpsertGrades(ctx, []models.Grade{
		{Source: "pronote", SourceID: "g-1", Subject: "French", Score: 15, OutOf: 20, Average: &avg, RecordedAt: now.Add(-time.Hour)},
		{Source: "pronote", SourceID: "g-2", Subject: "Maths", Score: 18, OutOf: 20, RecordedAt: now},
	}))
	require.NoError(t, repo.UpsertLessons(ctx, []models.Lesson{
		{Source: "pronote", SourceID: "l-1", Subject: "Chemistry", Teacher: strPtr("Dr. Curie"), StartTime: now, EndTime: now.Add(time.Hour)},
	}))
	entries := []models.TimetableEntry{
		{Source: "pronote", SourceID: "t-1", Title: "Maths", Day: "2026-02-02", StartTime: "08:00", EndTime: "09:00", Metadata: models.Metadata{"room": "A204"}},
	}
	require.NoError(t, repo.UpsertTimetableEntries(ctx, entries))
	require.NoError(t, repo.UpsertTimetableEntries(ctx, entries))

	summary, err := repo.GetDashboard(ctx)
	require.NoError(t, err)

	require.Len(t, summary.Deadlines, 2)
	assert.Equal(t, "d-1", summary.Deadlines[0].SourceID)
	assert.Equal(t, "pens", summary.Deadlines[0].Metadata["details"])

	require.Len(t, summary.Grades, 2)
	assert.Equal(t, "g-2", summary.Grades[0].SourceID, "newest grade first")
	assert.Nil(t, summary.Grades[0].Average)
	require.NotNil(t, summary.Grades[1].Average)
	assert.Equal(t, 12.0, *summary.Grades[1].Average)

	require.Len(t, summary.Lessons, 1)
	assert.Equal(t, "Dr. Curie", *summary.Lessons[0].Teacher)
	assert.Nil(t, summary.Lessons[0].Room)

	require.Len(t, summary.Timetable, 1)
	assert.Equal(t, "2026-02-02", summary.Timetable[0].Day)
	assert.Equal(t, "A204", summary.Timetable[0].Metadata["room"])
}

func TestGetLessonsBetween(t *testing.T) {
	ctx := context.Background()
	repo := NewSchoolRepository(setupTestDB(t))
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertLessons(ctx, []models.Lesson{
		{Source: "pronote", SourceID: "before", Subject: "A", StartTime: base.Add(-time.Hour), EndTime: base},
		{Source: "pronote", SourceID: "inside", Subject: "B", StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour)},
		{Source: "pronote", SourceID: "after", Subject: "C", StartTime: base.Add(48 * time.Hour), EndTime: base.Add(49 * time.Hour)},
	}))

	lessons, err := repo.GetLessonsBetween(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "inside", lessons[0].SourceID)
}

func TestDecodeMetadataKeepsUnparseablePayload(t *testing.T) {
	meta := decodeMetadata("not json")
	assert.Equal(t, "not json", meta["raw"])
	assert.Empty(t, decodeMetadata(""))
}
