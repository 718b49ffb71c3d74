// ABOUTME: Pure transforms from Pronote wire shapes into normalized records
// ABOUTME: The homework default estimate is the only configuration the mapper reads
package pronote

import (
	"time"

	"github.com/harperreed/schoolsync/models"
)

// Source is the natural-key source for every record produced here.
const Source = models.SourcePronote

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func requiredTime(collection, id, field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &ValidationError{Collection: collection, RecordID: id, Field: field, Reason: "is required"}
	}
	t, ok := parseTimestamp(value)
	if !ok {
		return time.Time{}, &ValidationError{Collection: collection, RecordID: id, Field: field, Reason: "is not a valid timestamp"}
	}
	return t, nil
}

func requiredString(collection, id, field, value string) error {
	if value == "" {
		return &ValidationError{Collection: collection, RecordID: id, Field: field, Reason: "is required"}
	}
	return nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// MapHomeworkToTask converts a homework item. defaultEstimate applies when the
// source has no explicit estimate.
func MapHomeworkToTask(hw Homework, defaultEstimate int) (models.Task, error) {
	if err := requiredString(CollectionHomework, hw.ID, "id", hw.ID); err != nil {
		return models.Task{}, err
	}
	if err := requiredString(CollectionHomework, hw.ID, "subject", hw.Subject); err != nil {
		return models.Task{}, err
	}

	var due *time.Time
	if hw.DueDate != "" {
		t, err := requiredTime(CollectionHomework, hw.ID, "dueDate", hw.DueDate)
		if err != nil {
			return models.Task{}, err
		}
		due = &t
	}

	estimate := defaultEstimate
	if hw.TimeEstimateMinutes != nil {
		estimate = *hw.TimeEstimateMinutes
	}

	attachments := make([]any, 0, len(hw.Attachments))
	for _, a := range hw.Attachments {
		attachments = append(attachments, map[string]any{"name": a.Name, "url": a.URL})
	}

	return models.Task{
		Source:           Source,
		SourceID:         hw.ID,
		Title:            hw.Subject + " homework",
		Description:      optionalString(hw.Description),
		DueDate:          due,
		EstimatedMinutes: estimate,
		Origin: models.TaskOrigin{
			System:      Source,
			Category:    "homework",
			ReferenceID: hw.ID,
		},
		Metadata: models.Metadata{
			"subject":     hw.Subject,
			"attachments": attachments,
		},
	}, nil
}

func MapDeadlineToRecord(d Deadline) (models.Deadline, error) {
	if err := requiredString(CollectionDeadlines, d.ID, "id", d.ID); err != nil {
		return models.Deadline{}, err
	}
	if err := requiredString(CollectionDeadlines, d.ID, "label", d.Label); err != nil {
		return models.Deadline{}, err
	}
	due, err := requiredTime(CollectionDeadlines, d.ID, "dueDate", d.DueDate)
	if err != nil {
		return models.Deadline{}, err
	}

	meta := models.Metadata{}
	if d.Details != "" {
		meta["details"] = d.Details
	}

	return models.Deadline{
		Source:   Source,
		SourceID: d.ID,
		Label:    d.Label,
		DueDate:  due,
		Metadata: meta,
	}, nil
}

func MapGradeToRecord(g Grade) (models.Grade, error) {
	if err := requiredString(CollectionGrades, g.ID, "id", g.ID); err != nil {
		return models.Grade{}, err
	}
	if err := requiredString(CollectionGrades, g.ID, "subject", g.Subject); err != nil {
		return models.Grade{}, err
	}
	if g.Score == nil {
		return models.Grade{}, &ValidationError{Collection: CollectionGrades, RecordID: g.ID, Field: "score", Reason: "is required"}
	}
	if g.OutOf == nil {
		return models.Grade{}, &ValidationError{Collection: CollectionGrades, RecordID: g.ID, Field: "outOf", Reason: "is required"}
	}
	recorded, err := requiredTime(CollectionGrades, g.ID, "recordedAt", g.RecordedAt)
	if err != nil {
		return models.Grade{}, err
	}

	meta := models.Metadata{}
	if g.Comment != "" {
		meta["comment"] = g.Comment
	}

	return models.Grade{
		Source:     Source,
		SourceID:   g.ID,
		Subject:    g.Subject,
		Score:      *g.Score,
		OutOf:      *g.OutOf,
		Average:    g.Average,
		RecordedAt: recorded,
		Metadata:   meta,
	}, nil
}

func MapLessonToRecord(l Lesson) (models.Lesson, error) {
	if err := requiredString(CollectionLessons, l.ID, "id", l.ID); err != nil {
		return models.Lesson{}, err
	}
	if err := requiredString(CollectionLessons, l.ID, "subject", l.Subject); err != nil {
		return models.Lesson{}, err
	}
	start, err := requiredTime(CollectionLessons, l.ID, "startTime", l.StartTime)
	if err != nil {
		return models.Lesson{}, err
	}
	end, err := requiredTime(CollectionLessons, l.ID, "endTime", l.EndTime)
	if err != nil {
		return models.Lesson{}, err
	}

	meta := models.Metadata{}
	if l.Notes != "" {
		meta["notes"] = l.Notes
	}

	return models.Lesson{
		Source:    Source,
		SourceID:  l.ID,
		Subject:   l.Subject,
		Teacher:   optionalString(l.Teacher),
		Room:      optionalString(l.Room),
		StartTime: start,
		EndTime:   end,
		Metadata:  meta,
	}, nil
}

func MapTimetableEntryToRecord(e TimetableEntry) (models.TimetableEntry, error) {
	for _, f := range []struct{ name, value string }{
		{"id", e.ID}, {"title", e.Title}, {"day", e.Day}, {"startTime", e.StartTime}, {"endTime", e.EndTime},
	} {
		if err := requiredString(CollectionTimetable, e.ID, f.name, f.value); err != nil {
			return models.TimetableEntry{}, err
		}
	}

	parsedDay, ok := parseTimestamp(e.Day)
	if !ok {
		return models.TimetableEntry{}, &ValidationError{Collection: CollectionTimetable, RecordID: e.ID, Field: "day", Reason: "is not a valid date"}
	}

	meta := models.Metadata{}
	for k, v := range e.Metadata {
		meta[k] = v
	}

	return models.TimetableEntry{
		Source:    Source,
		SourceID:  e.ID,
		Title:     e.Title,
		Day:       parsedDay.Format(time.DateOnly),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Metadata:  meta,
	}, nil
}

// MapAll applies fn to every item, collecting successes and per-record errors
// so one malformed record never drops its siblings.
func MapAll[S, R any](items []S, fn func(S) (R, error)) ([]R, []error) {
	out := make([]R, 0, len(items))
	var errs []error
	for _, item := range items {
		rec, err := fn(item)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}
