// ABOUTME: Wire shapes returned by the Pronote gateway API
// ABOUTME: Decoded from the {meta, data} envelope before mapping into models
package pronote

// Collection names used in paths, errors and metrics.
const (
	CollectionHomework  = "homework"
	CollectionDeadlines = "deadlines"
	CollectionGrades    = "grades"
	CollectionLessons   = "lessons"
	CollectionTimetable = "timetable"
)

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Homework struct {
	ID                  string       `json:"id"`
	Subject             string       `json:"subject"`
	Description         string       `json:"description"`
	DueDate             string       `json:"dueDate"`
	TimeEstimateMinutes *int         `json:"timeEstimateMinutes,omitempty"`
	Attachments         []Attachment `json:"attachments,omitempty"`
}

type Deadline struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	DueDate string `json:"dueDate"`
	Details string `json:"details,omitempty"`
}

type Grade struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Score      *float64 `json:"score"`
	OutOf      *float64 `json:"outOf"`
	Average    *float64 `json:"average,omitempty"`
	RecordedAt string   `json:"recordedAt"`
	Comment    string   `json:"comment,omitempty"`
}

type Lesson struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher,omitempty"`
	Room      string `json:"room,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Notes     string `json:"notes,omitempty"`
}

type TimetableEntry struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Day       string         `json:"day"`
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type payloadMeta struct {
	FetchedAt string `json:"fetchedAt"`
	Count     int    `json:"count"`
}

type payload[T any] struct {
	Meta payloadMeta `json:"meta"`
	Data []T         `json:"data"`
}
