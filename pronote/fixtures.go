// ABOUTME: Fixed fixture set served by the mock client
// ABOUTME: Dates are relative to the moment the fixtures are built
package pronote

import "time"

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64 { return &v }

// Fixtures holds one snapshot of every collection.
type Fixtures struct {
	Homework  []Homework
	Deadlines []Deadline
	Grades    []Grade
	Lessons   []Lesson
	Timetable []TimetableEntry
}

// NewFixtures builds the demo data set relative to now.
func NewFixtures(now time.Time) Fixtures {
	now = now.UTC()
	day := 24 * time.Hour
	iso := func(t time.Time) string { return t.Format(time.RFC3339Nano) }

	return Fixtures{
		Homework: []Homework{
			{
				ID:                  "hw-math-001",
				Subject:             "Mathematics",
				Description:         "Complete exercises 5 through 12 on page 42.",
				DueDate:             iso(now.Add(2 * day)),
				TimeEstimateMinutes: intPtr(45),
				Attachments:         []Attachment{{Name: "worksheet.pdf", URL: "https://files.example/worksheet.pdf"}},
			},
			{
				ID:                  "hw-hist-002",
				Subject:             "History",
				Description:         "Read chapter 3 and prepare a short summary.",
				DueDate:             iso(now.Add(4 * day)),
				TimeEstimateMinutes: intPtr(30),
			},
		},
		Deadlines: []Deadline{
			{
				ID:      "exam-phy-2024",
				Label:   "Physics mid-term exam",
				DueDate: iso(now.Add(7 * day)),
				Details: "Bring calculator and lab notes.",
			},
		},
		Grades: []Grade{
			{
				ID:         "grade-fr-15",
				Subject:    "French",
				Score:      floatPtr(15),
				OutOf:      floatPtr(20),
				Average:    floatPtr(12),
				RecordedAt: iso(now),
				Comment:    "Great participation.",
			},
		},
		Lessons: []Lesson{
			{
				ID:        "lesson-chem-1",
				Subject:   "Chemistry",
				Teacher:   "Dr. Curie",
				Room:      "Lab 2",
				StartTime: iso(now.Add(3 * time.Hour)),
				EndTime:   iso(now.Add(4 * time.Hour)),
				Notes:     "Safety goggles mandatory.",
			},
		},
		Timetable: []TimetableEntry{
			{
				ID:        "timetable-mon-1",
				Title:     "Mathematics",
				Day:       now.Format(time.DateOnly),
				StartTime: "08:00",
				EndTime:   "09:00",
				Metadata:  map[string]any{"room": "A204", "teacher": "Mrs. Euler"},
			},
		},
	}
}
