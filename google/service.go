// ABOUTME: Per-user Google sync service tying auth, Docs, Calendar and Drive to storage
// ABOUTME: Syncs task notes and calendar events and computes exam countdowns
package google

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/api/option"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/metrics"
	"github.com/harperreed/schoolsync/models"
)

// DefaultDaysAhead is the calendar sync window when none is given.
const DefaultDaysAhead = 30

// NoteLink identifies the document backing a task note.
type NoteLink struct {
	DocID string `json:"googleDocId"`
	URL   string `json:"googleDocUrl"`
}

type Service struct {
	auth       *Auth
	db         *db.DB
	tokens     *db.TokenRepository
	notes      *db.TaskNoteRepository
	events     *db.CalendarEventRepository
	apiOptions []option.ClientOption
	now        func() time.Time
}

type Option func(*Service)

// WithAPIOptions appends client options to every Google API service, e.g. a test endpoint.
func WithAPIOptions(opts ...option.ClientOption) Option {
	return func(s *Service) { s.apiOptions = append(s.apiOptions, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(auth *Auth, database *db.DB, opts ...Option) *Service {
	s := &Service{
		auth:   auth,
		db:     database,
		tokens: db.NewTokenRepository(database),
		notes:  db.NewTaskNoteRepository(database),
		events: db.NewCalendarEventRepository(database),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Auth() *Auth { return s.auth }

func (s *Service) clientOptions(ctx context.Context, userID string) ([]option.ClientOption, error) {
	client, err := s.auth.Client(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]option.ClientOption{option.WithHTTPClient(client)}, s.apiOptions...), nil
}

func (s *Service) calendar(ctx context.Context, userID string) (*Calendar, error) {
	opts, err := s.clientOptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	cal, err := NewCalendar(ctx, opts...)
	if err != nil {
		return nil, err
	}
	cal.now = s.now
	return cal, nil
}

func (s *Service) docs(ctx context.Context, userID string) (*Docs, error) {
	opts, err := s.clientOptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewDocs(ctx, opts...)
}

func (s *Service) drive(ctx context.Context, userID string) (*Drive, error) {
	opts, err := s.clientOptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewDrive(ctx, opts...)
}

// Status returns the stored token for userID, nil when not connected.
func (s *Service) Status(ctx context.Context, userID string) (*models.OAuthToken, error) {
	return s.tokens.GetTokenByUserID(ctx, userID)
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteTokenByUserID(ctx, userID); err != nil {
		return err
	}
	logging.Info().Str("user_id", userID).Msg("Disconnected Google account")
	return nil
}

// SyncTaskNote creates the task's note document on first use and rewrites it afterwards.
func (s *Service) SyncTaskNote(ctx context.Context, task *models.Task, userID string) (*NoteLink, error) {
	link, err := s.syncTaskNote(ctx, task, userID)
	if err != nil {
		logging.Error().Err(err).Str("task_id", task.ID).Str("user_id", userID).Msg("Failed to sync task note")
		return nil, err
	}
	return link, nil
}

func (s *Service) syncTaskNote(ctx context.Context, task *models.Task, userID string) (*NoteLink, error) {
	d, err := s.docs(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, err := s.notes.GetTaskNoteByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	content := NoteContent(task)

	if existing != nil && existing.GoogleDocID != nil {
		docID := *existing.GoogleDocID
		if err := d.Update(ctx, docID, content); err != nil {
			return nil, err
		}
		url := DocURL(docID)
		if existing.GoogleDocURL != nil {
			url = *existing.GoogleDocURL
		}
		if _, err := s.notes.UpsertTaskNote(ctx, task.ID, &docID, &url, content); err != nil {
			return nil, err
		}
		logging.Info().Str("task_id", task.ID).Str("doc_id", docID).Msg("Updated task note")
		return &NoteLink{DocID: docID, URL: url}, nil
	}

	docID, url, err := d.Create(ctx, "Task: "+task.Title, content)
	if err != nil {
		return nil, err
	}
	if _, err := s.notes.UpsertTaskNote(ctx, task.ID, &docID, &url, content); err != nil {
		return nil, err
	}
	logging.Info().Str("task_id", task.ID).Str("doc_id", docID).Msg("Created task note")
	return &NoteLink{DocID: docID, URL: url}, nil
}

// TaskNote returns the stored note for taskID, refreshed from its document when userID is connected.
func (s *Service) TaskNote(ctx context.Context, taskID, userID string) (*models.TaskNote, error) {
	note, err := s.notes.GetTaskNoteByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, db.ErrNotFound
	}
	if note.GoogleDocID == nil {
		return note, nil
	}

	d, err := s.docs(ctx, userID)
	if errors.Is(err, ErrNoToken) {
		return note, nil
	}
	if err != nil {
		return nil, err
	}
	content, err := d.GetContent(ctx, *note.GoogleDocID)
	if err != nil {
		logging.Warn().Err(err).Str("task_id", taskID).Msg("Serving stored note content")
		return note, nil
	}
	if content == note.Content {
		return note, nil
	}
	return s.notes.UpsertTaskNote(ctx, taskID, note.GoogleDocID, note.GoogleDocURL, content)
}

// SyncCalendarEvents imports events in the next daysAhead days and returns how many were stored.
func (s *Service) SyncCalendarEvents(ctx context.Context, userID string, daysAhead int) (int, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	service := "google-calendar:" + userID
	if err := db.UpdateSyncStatus(ctx, s.db, service, db.SyncStatusSyncing, nil); err != nil {
		return 0, err
	}

	count, err := s.syncCalendarEvents(ctx, userID, daysAhead)
	if err != nil {
		msg := err.Error()
		_ = db.UpdateSyncStatus(ctx, s.db, service, db.SyncStatusError, &msg)
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to sync calendar events")
		return 0, err
	}
	if err := db.UpdateSyncStatus(ctx, s.db, service, db.SyncStatusIdle, nil); err != nil {
		return count, err
	}

	metrics.CalendarEventsSynced.Add(float64(count))
	logging.Info().Str("user_id", userID).Int("count", count).Msg("Synced Google Calendar events")
	return count, nil
}

func (s *Service) syncCalendarEvents(ctx context.Context, userID string, daysAhead int) (int, error) {
	cal, err := s.calendar(ctx, userID)
	if err != nil {
		return 0, err
	}
	events, err := cal.UpcomingEvents(ctx, daysAhead)
	if err != nil {
		return 0, err
	}
	return s.events.UpsertEvents(ctx, events)
}

// ExamCountdown lists upcoming exams with whole days remaining (rounded up).
// It returns an empty list when the user is not connected or the lookup fails.
func (s *Service) ExamCountdown(ctx context.Context, userID string) []models.ExamCountdown {
	countdown := []models.ExamCountdown{}

	cal, err := s.calendar(ctx, userID)
	if errors.Is(err, ErrNoToken) {
		logging.Warn().Str("user_id", userID).Msg("No Google OAuth token found for exam countdown")
		return countdown
	}
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to get exam countdown")
		return countdown
	}
	exams, err := cal.ExamEvents(ctx)
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to get exam countdown")
		return countdown
	}

	now := s.now()
	for _, exam := range exams {
		countdown = append(countdown, models.ExamCountdown{
			Title:     exam.Title,
			DaysUntil: daysUntil(now, exam.StartTime),
			Date:      exam.StartTime,
		})
	}
	return countdown
}

func daysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// DriveFiles searches by name, or lists recent files when name is empty.
func (s *Service) DriveFiles(ctx context.Context, userID, name string) ([]models.DriveFile, error) {
	d, err := s.drive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return d.ListFiles(ctx, "", defaultDrivePageSize)
	}
	return d.SearchFilesByName(ctx, name)
}

// NoteContent renders the plain-text body of a task note.
func NoteContent(task *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", task.Title)
	if task.Description != nil && *task.Description != "" {
		fmt.Fprintf(&b, "Description:\n%s\n\n", *task.Description)
	}
	if task.DueDate != nil {
		fmt.Fprintf(&b, "Due Date: %s\n", task.DueDate.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	fmt.Fprintf(&b, "Estimated Time: %d minutes\n", task.EstimatedMinutes)
	fmt.Fprintf(&b, "Source: %s\n\n", task.Source)
	b.WriteString("--- Task Notes ---\n")
	b.WriteString("Add your notes here...\n")
	return b.String()
}
