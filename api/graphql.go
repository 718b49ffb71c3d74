// ABOUTME: GraphQL schema and resolvers exposing tasks and the dashboard summary
// ABOUTME: Timestamps are RFC 3339 strings and metadata is an opaque JSON scalar
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/models"
)

const graphQLSchema = `
	scalar JSON

	type TaskOrigin {
		system: String!
		category: String!
		referenceId: String!
	}

	type Task {
		id: ID!
		source: String!
		sourceId: String!
		title: String!
		description: String
		dueDate: String
		estimatedMinutes: Int!
		origin: TaskOrigin!
		metadata: JSON!
	}

	type Deadline {
		id: ID!
		label: String!
		dueDate: String!
		metadata: JSON!
	}

	type Grade {
		id: ID!
		subject: String!
		score: Float!
		outOf: Float!
		average: Float
		recordedAt: String!
		metadata: JSON!
	}

	type Lesson {
		id: ID!
		subject: String!
		teacher: String
		room: String
		startTime: String!
		endTime: String!
		metadata: JSON!
	}

	type TimetableEntry {
		id: ID!
		title: String!
		day: String!
		startTime: String!
		endTime: String!
		metadata: JSON!
	}

	type DashboardSummary {
		tasks: [Task!]!
		deadlines: [Deadline!]!
		grades: [Grade!]!
		lessons: [Lesson!]!
		timetable: [TimetableEntry!]!
	}

	type Query {
		tasks: [Task!]!
		dashboardSummary: DashboardSummary!
	}
`

// JSON is the GraphQL scalar for free-form metadata.
type JSON struct {
	Value models.Metadata
}

func (JSON) ImplementsGraphQLType(name string) bool { return name == "JSON" }

func (j *JSON) UnmarshalGraphQL(input any) error {
	m, ok := input.(map[string]any)
	if !ok {
		return fmt.Errorf("JSON scalar expects an object, got %T", input)
	}
	j.Value = m
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j.Value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j.Value)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

type rootResolver struct {
	repo *db.SchoolRepository
}

func (r *rootResolver) Tasks(ctx context.Context) ([]*taskResolver, error) {
	tasks, err := r.repo.GetTasks(ctx)
	if err != nil {
		return nil, err
	}
	return taskResolvers(tasks), nil
}

func (r *rootResolver) DashboardSummary(ctx context.Context) (*dashboardResolver, error) {
	summary, err := r.repo.GetDashboard(ctx)
	if err != nil {
		return nil, err
	}
	return &dashboardResolver{s: summary}, nil
}

type dashboardResolver struct{ s *models.DashboardSummary }

func (d *dashboardResolver) Tasks() []*taskResolver { return taskResolvers(d.s.Tasks) }

func (d *dashboardResolver) Deadlines() []*deadlineResolver {
	out := make([]*deadlineResolver, len(d.s.Deadlines))
	for i := range d.s.Deadlines {
		out[i] = &deadlineResolver{d.s.Deadlines[i]}
	}
	return out
}

func (d *dashboardResolver) Grades() []*gradeResolver {
	out := make([]*gradeResolver, len(d.s.Grades))
	for i := range d.s.Grades {
		out[i] = &gradeResolver{d.s.Grades[i]}
	}
	return out
}

func (d *dashboardResolver) Lessons() []*lessonResolver {
	out := make([]*lessonResolver, len(d.s.Lessons))
	for i := range d.s.Lessons {
		out[i] = &lessonResolver{d.s.Lessons[i]}
	}
	return out
}

func (d *dashboardResolver) Timetable() []*timetableResolver {
	out := make([]*timetableResolver, len(d.s.Timetable))
	for i := range d.s.Timetable {
		out[i] = &timetableResolver{d.s.Timetable[i]}
	}
	return out
}

func taskResolvers(tasks []models.Task) []*taskResolver {
	out := make([]*taskResolver, len(tasks))
	for i := range tasks {
		out[i] = &taskResolver{tasks[i]}
	}
	return out
}

type taskResolver struct{ t models.Task }

func (r *taskResolver) ID() graphql.ID          { return graphql.ID(r.t.ID) }
func (r *taskResolver) Source() string          { return r.t.Source }
func (r *taskResolver) SourceID() string        { return r.t.SourceID }
func (r *taskResolver) Title() string           { return r.t.Title }
func (r *taskResolver) Description() *string    { return r.t.Description }
func (r *taskResolver) EstimatedMinutes() int32 { return int32(r.t.EstimatedMinutes) }
func (r *taskResolver) Metadata() JSON          { return JSON{r.t.Metadata} }

func (r *taskResolver) DueDate() *string {
	if r.t.DueDate == nil {
		return nil
	}
	s := formatTime(*r.t.DueDate)
	return &s
}

func (r *taskResolver) Origin() *originResolver { return &originResolver{r.t.Origin} }

type originResolver struct{ o models.TaskOrigin }

func (r *originResolver) System() string      { return r.o.System }
func (r *originResolver) Category() string    { return r.o.Category }
func (r *originResolver) ReferenceID() string { return r.o.ReferenceID }

type deadlineResolver struct{ d models.Deadline }

func (r *deadlineResolver) ID() graphql.ID  { return graphql.ID(r.d.ID) }
func (r *deadlineResolver) Label() string   { return r.d.Label }
func (r *deadlineResolver) DueDate() string { return formatTime(r.d.DueDate) }
func (r *deadlineResolver) Metadata() JSON  { return JSON{r.d.Metadata} }

type gradeResolver struct{ g models.Grade }

func (r *gradeResolver) ID() graphql.ID     { return graphql.ID(r.g.ID) }
func (r *gradeResolver) Subject() string    { return r.g.Subject }
func (r *gradeResolver) Score() float64     { return r.g.Score }
func (r *gradeResolver) OutOf() float64     { return r.g.OutOf }
func (r *gradeResolver) Average() *float64  { return r.g.Average }
func (r *gradeResolver) RecordedAt() string { return formatTime(r.g.RecordedAt) }
func (r *gradeResolver) Metadata() JSON     { return JSON{r.g.Metadata} }

type lessonResolver struct{ l models.Lesson }

func (r *lessonResolver) ID() graphql.ID    { return graphql.ID(r.l.ID) }
func (r *lessonResolver) Subject() string   { return r.l.Subject }
func (r *lessonResolver) Teacher() *string  { return r.l.Teacher }
func (r *lessonResolver) Room() *string     { return r.l.Room }
func (r *lessonResolver) StartTime() string { return formatTime(r.l.StartTime) }
func (r *lessonResolver) EndTime() string   { return formatTime(r.l.EndTime) }
func (r *lessonResolver) Metadata() JSON    { return JSON{r.l.Metadata} }

type timetableResolver struct{ e models.TimetableEntry }

func (r *timetableResolver) ID() graphql.ID    { return graphql.ID(r.e.ID) }
func (r *timetableResolver) Title() string     { return r.e.Title }
func (r *timetableResolver) Day() string       { return r.e.Day }
func (r *timetableResolver) StartTime() string { return r.e.StartTime }
func (r *timetableResolver) EndTime() string   { return r.e.EndTime }
func (r *timetableResolver) Metadata() JSON    { return JSON{r.e.Metadata} }
