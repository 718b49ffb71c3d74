// ABOUTME: Full SIS sync: concurrent fetch, per-record mapping, concurrent persistence
// ABOUTME: Records sync_state and metrics for each run labelled by its trigger
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/metrics"
	"github.com/harperreed/schoolsync/models"
	"github.com/harperreed/schoolsync/pronote"
)

// ServicePronote is the sync_state key for SIS runs.
const ServicePronote = "pronote"

// Store persists normalized SIS records.
type Store interface {
	UpsertTasks(ctx context.Context, tasks []models.Task) error
	UpsertDeadlines(ctx context.Context, deadlines []models.Deadline) error
	UpsertGrades(ctx context.Context, grades []models.Grade) error
	UpsertLessons(ctx context.Context, lessons []models.Lesson) error
	UpsertTimetableEntries(ctx context.Context, entries []models.TimetableEntry) error
}

// Syncer runs a full sync. Schedulers and API handlers depend on this rather than *Orchestrator.
type Syncer interface {
	RunFullSync(ctx context.Context, triggeredBy string) (*models.SyncResult, error)
}

type Orchestrator struct {
	client          pronote.Client
	store           Store
	db              *db.DB
	defaultEstimate int
}

func NewOrchestrator(client pronote.Client, database *db.DB, defaultEstimate int) *Orchestrator {
	return &Orchestrator{
		client:          client,
		store:           db.NewSchoolRepository(database),
		db:              database,
		defaultEstimate: defaultEstimate,
	}
}

// WithStore swaps the persistence target, keeping sync_state on the orchestrator's database.
func (o *Orchestrator) WithStore(store Store) *Orchestrator {
	o.store = store
	return o
}

// RunFullSync fetches every collection, maps and persists them, and returns per-collection counts.
// A failed fetch fails the whole run before anything is written.
func (o *Orchestrator) RunFullSync(ctx context.Context, triggeredBy string) (*models.SyncResult, error) {
	started := time.Now()
	logging.Info().Str("triggered_by", triggeredBy).Msg("Starting Pronote sync")
	o.setStatus(ctx, db.SyncStatusSyncing, nil)

	result, err := o.run(ctx, triggeredBy)
	metrics.ObserveSync(triggeredBy, started, err)
	if err != nil {
		msg := err.Error()
		o.setStatus(ctx, db.SyncStatusError, &msg)
		logging.Error().Err(err).Str("triggered_by", triggeredBy).Msg("Pronote sync failed")
		return nil, err
	}
	o.setStatus(ctx, db.SyncStatusIdle, nil)

	logging.Info().
		Str("triggered_by", triggeredBy).
		Int("tasks", result.Tasks).
		Int("deadlines", result.Deadlines).
		Int("grades", result.Grades).
		Int("lessons", result.Lessons).
		Int("timetable_entries", result.TimetableEntries).
		Int("rejected", result.RejectedTotal()).
		Dur("elapsed", time.Since(started)).
		Msg("Pronote sync completed")
	return result, nil
}

func (o *Orchestrator) setStatus(ctx context.Context, status string, msg *string) {
	if o.db == nil {
		return
	}
	if err := db.UpdateSyncStatus(ctx, o.db, ServicePronote, status, msg); err != nil {
		logging.Warn().Err(err).Str("status", status).Msg("Failed to record sync state")
	}
}

type fetched struct {
	homework  []pronote.Homework
	deadlines []pronote.Deadline
	grades    []pronote.Grade
	lessons   []pronote.Lesson
	timetable []pronote.TimetableEntry
}

func (o *Orchestrator) fetchAll(ctx context.Context) (*fetched, error) {
	var f fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { f.homework, err = o.client.FetchHomework(gctx); return })
	g.Go(func() (err error) { f.deadlines, err = o.client.FetchDeadlines(gctx); return })
	g.Go(func() (err error) { f.grades, err = o.client.FetchGrades(gctx); return })
	g.Go(func() (err error) { f.lessons, err = o.client.FetchLessons(gctx); return })
	g.Go(func() (err error) { f.timetable, err = o.client.FetchTimetable(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (o *Orchestrator) run(ctx context.Context, triggeredBy string) (*models.SyncResult, error) {
	f, err := o.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{TriggeredBy: triggeredBy}
	tasks, errs := pronote.MapAll(f.homework, func(hw pronote.Homework) (models.Task, error) {
		return pronote.MapHomeworkToTask(hw, o.defaultEstimate)
	})
	reject(result, pronote.CollectionHomework, errs)
	deadlines, errs := pronote.MapAll(f.deadlines, pronote.MapDeadlineToRecord)
	reject(result, pronote.CollectionDeadlines, errs)
	grades, errs := pronote.MapAll(f.grades, pronote.MapGradeToRecord)
	reject(result, pronote.CollectionGrades, errs)
	lessons, errs := pronote.MapAll(f.lessons, pronote.MapLessonToRecord)
	reject(result, pronote.CollectionLessons, errs)
	timetable, errs := pronote.MapAll(f.timetable, pronote.MapTimetableEntryToRecord)
	reject(result, pronote.CollectionTimetable, errs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.store.UpsertTasks(gctx, tasks) })
	g.Go(func() error { return o.store.UpsertDeadlines(gctx, deadlines) })
	g.Go(func() error { return o.store.UpsertGrades(gctx, grades) })
	g.Go(func() error { return o.store.UpsertLessons(gctx, lessons) })
	g.Go(func() error { return o.store.UpsertTimetableEntries(gctx, timetable) })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to persist sync results: %w", err)
	}

	result.Tasks = len(tasks)
	result.Deadlines = len(deadlines)
	result.Grades = len(grades)
	result.Lessons = len(lessons)
	result.TimetableEntries = len(timetable)

	metrics.RecordsSynced.WithLabelValues(pronote.CollectionHomework).Add(float64(result.Tasks))
	metrics.RecordsSynced.WithLabelValues(pronote.CollectionDeadlines).Add(float64(result.Deadlines))
	metrics.RecordsSynced.WithLabelValues(pronote.CollectionGrades).Add(float64(result.Grades))
	metrics.RecordsSynced.WithLabelValues(pronote.CollectionLessons).Add(float64(result.Lessons))
	metrics.RecordsSynced.WithLabelValues(pronote.CollectionTimetable).Add(float64(result.TimetableEntries))
	return result, nil
}

// reject logs and counts records that failed mapping; their siblings continue.
func reject(result *models.SyncResult, collection string, errs []error) {
	if len(errs) == 0 {
		return
	}
	if result.Rejected == nil {
		result.Rejected = map[string]int{}
	}
	result.Rejected[collection] += len(errs)
	metrics.RecordsRejected.WithLabelValues(collection).Add(float64(len(errs)))
	for _, err := range errs {
		logging.Warn().Err(err).Str("collection", collection).Msg("Rejected record")
	}
}
