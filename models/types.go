// ABOUTME: Normalized record types shared by the sync engine, repository and API
// ABOUTME: Defines tasks, deadlines, grades, lessons, timetable entries and productivity-suite records
package models

import "time"

// Record sources.
const (
	SourcePronote        = "pronote"
	SourceGoogleCalendar = "google-calendar"
)

// Calendar event kinds.
const (
	EventTypeLesson   = "lesson"
	EventTypeCalendar = "calendar"
	EventTypeExam     = "exam"
)

// Metadata is free-form JSON stored alongside a record.
type Metadata map[string]any

type TaskOrigin struct {
	System      string `json:"system"`
	Category    string `json:"category"`
	ReferenceID string `json:"referenceId"`
}

type Task struct {
	ID               string     `json:"id"`
	Source           string     `json:"source"`
	SourceID         string     `json:"sourceId"`
	Title            string     `json:"title"`
	Description      *string    `json:"description,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	Origin           TaskOrigin `json:"origin"`
	Metadata         Metadata   `json:"metadata"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type Deadline struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	SourceID  string    `json:"sourceId"`
	Label     string    `json:"label"`
	DueDate   time.Time `json:"dueDate"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Grade struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	SourceID   string    `json:"sourceId"`
	Subject    string    `json:"subject"`
	Score      float64   `json:"score"`
	OutOf      float64   `json:"outOf"`
	Average    *float64  `json:"average,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Lesson struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	SourceID  string    `json:"sourceId"`
	Subject   string    `json:"subject"`
	Teacher   *string   `json:"teacher,omitempty"`
	Room      *string   `json:"room,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TimetableEntry is day-scoped: Day is YYYY-MM-DD and times are HH:MM strings.
type TimetableEntry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	SourceID  string    `json:"sourceId"`
	Title     string    `json:"title"`
	Day       string    `json:"day"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OAuthToken is keyed by UserID. ExpiryDate is epoch milliseconds.
type OAuthToken struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Scope        string    `json:"scope"`
	TokenType    string    `json:"tokenType"`
	ExpiryDate   int64     `json:"expiryDate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Expiry converts ExpiryDate to a time, zero when unset.
func (t *OAuthToken) Expiry() time.Time {
	if t.ExpiryDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiryDate)
}

type CalendarEvent struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	SourceID    string    `json:"sourceId"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Location    *string   `json:"location,omitempty"`
	EventType   string    `json:"eventType"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

type TaskNote struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"taskId"`
	GoogleDocID  *string    `json:"googleDocId,omitempty"`
	GoogleDocURL *string    `json:"googleDocUrl,omitempty"`
	Content      string     `json:"content"`
	SyncedAt     *time.Time `json:"syncedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// SyncResult summarizes one full SIS sync. Queued runs carry only TriggeredBy and JobID.
type SyncResult struct {
	Tasks            int            `json:"tasks"`
	Deadlines        int            `json:"deadlines"`
	Grades           int            `json:"grades"`
	Lessons          int            `json:"lessons"`
	TimetableEntries int            `json:"timetableEntries"`
	TriggeredBy      string         `json:"triggeredBy"`
	Rejected         map[string]int `json:"rejected,omitempty"`
	Queued           bool           `json:"queued,omitempty"`
	JobID            string         `json:"jobId,omitempty"`
}

// RejectedTotal sums per-collection rejected records.
func (r SyncResult) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

type DashboardSummary struct {
	Tasks     []Task           `json:"tasks"`
	Deadlines []Deadline       `json:"deadlines"`
	Grades    []Grade          `json:"grades"`
	Lessons   []Lesson         `json:"lessons"`
	Timetable []TimetableEntry `json:"timetable"`
}

type ExamCountdown struct {
	Title     string    `json:"title"`
	DaysUntil int       `json:"daysUntil"`
	Date      time.Time `json:"date"`
}

type DriveFile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MimeType       string `json:"mimeType"`
	WebViewLink    string `json:"webViewLink,omitempty"`
	WebContentLink string `json:"webContentLink,omitempty"`
	ThumbnailLink  string `json:"thumbnailLink,omitempty"`
	Size           int64  `json:"size,omitempty"`
	ModifiedTime   string `json:"modifiedTime,omitempty"`
}
