// ABOUTME: Pronote source client with mock and live implementations
// ABOUTME: Live mode authenticates with client credentials and fetches each collection over HTTP
package pronote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/harperreed/schoolsync/config"
)

// DefaultTimeout bounds each live HTTP call.
const DefaultTimeout = 8 * time.Second

// Client fetches source-shaped records for one student.
type Client interface {
	FetchHomework(ctx context.Context) ([]Homework, error)
	FetchDeadlines(ctx context.Context) ([]Deadline, error)
	FetchGrades(ctx context.Context) ([]Grade, error)
	FetchLessons(ctx context.Context) ([]Lesson, error)
	FetchTimetable(ctx context.Context) ([]TimetableEntry, error)
}

// Options configure a client.
type Options struct {
	Mode         string
	BaseURL      string
	SchoolID     string
	StudentID    string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// OptionsFromConfig builds Options from application config.
func OptionsFromConfig(cfg config.PronoteConfig) Options {
	return Options{
		Mode:         cfg.Mode,
		BaseURL:      cfg.BaseURL,
		SchoolID:     cfg.SchoolID,
		StudentID:    cfg.StudentID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.RequestTimeout,
	}
}

// NewClient returns a MockClient or LiveClient depending on opts.Mode.
func NewClient(opts Options) (Client, error) {
	switch opts.Mode {
	case config.ModeMock, "":
		return NewMockClient(time.Now()), nil
	case config.ModeLive:
		return NewLiveClient(opts)
	default:
		return nil, &config.ConfigError{Field: "PRONOTE_API_MODE", Reason: fmt.Sprintf("unknown mode %q", opts.Mode)}
	}
}

// MockClient serves a fixed fixture snapshot without network access.
type MockClient struct {
	fixtures Fixtures
}

func NewMockClient(now time.Time) *MockClient {
	return &MockClient{fixtures: NewFixtures(now)}
}

func (c *MockClient) FetchHomework(context.Context) ([]Homework, error) {
	return append([]Homework(nil), c.fixtures.Homework...), nil
}

func (c *MockClient) FetchDeadlines(context.Context) ([]Deadline, error) {
	return append([]Deadline(nil), c.fixtures.Deadlines...), nil
}

func (c *MockClient) FetchGrades(context.Context) ([]Grade, error) {
	return append([]Grade(nil), c.fixtures.Grades...), nil
}

func (c *MockClient) FetchLessons(context.Context) ([]Lesson, error) {
	return append([]Lesson(nil), c.fixtures.Lessons...), nil
}

func (c *MockClient) FetchTimetable(context.Context) ([]TimetableEntry, error) {
	return append([]TimetableEntry(nil), c.fixtures.Timetable...), nil
}

// LiveClient talks to the Pronote gateway.
type LiveClient struct {
	baseURL    string
	schoolID   string
	studentID  string
	httpClient *http.Client
	tokens     oauth2.TokenSource
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewLiveClient(opts Options) (*LiveClient, error) {
	if opts.BaseURL == "" {
		return nil, &config.ConfigError{Field: "PRONOTE_BASE_URL", Reason: "required in live mode"}
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, &config.ConfigError{Field: "PRONOTE_BASE_URL", Reason: err.Error()}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	return &LiveClient{
		baseURL:    base,
		schoolID:   opts.SchoolID,
		studentID:  opts.StudentID,
		httpClient: httpClient,
		tokens: newTokenSource(&credentialsSource{
			httpClient:   httpClient,
			tokenURL:     base + "/oauth/token",
			clientID:     opts.ClientID,
			clientSecret: opts.ClientSecret,
			timeout:      timeout,
		}),
		breaker: newBreaker("pronote"),
	}, nil
}

func (c *LiveClient) collectionURL(collection string) string {
	return fmt.Sprintf("%s/schools/%s/students/%s/%s",
		c.baseURL, url.PathEscape(c.schoolID), url.PathEscape(c.studentID), collection)
}

// get authenticates then fetches one collection body through the breaker.
func (c *LiveClient) get(ctx context.Context, collection string) ([]byte, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, &AuthError{Err: err}
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL(collection), nil)
		if err != nil {
			return nil, err
		}
		tok.SetAuthHeader(req)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &FetchError{Collection: collection, StatusCode: resp.StatusCode}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}
		return nil, &FetchError{Collection: collection, Err: err}
	}
	return body, nil
}

func fetchCollection[T any](ctx context.Context, c *LiveClient, collection string) ([]T, error) {
	body, err := c.get(ctx, collection)
	if err != nil {
		return nil, err
	}

	var p payload[T]
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &FetchError{Collection: collection, Err: fmt.Errorf("failed to decode payload: %w", err)}
	}
	if p.Data == nil {
		return []T{}, nil
	}
	return p.Data, nil
}

func (c *LiveClient) FetchHomework(ctx context.Context) ([]Homework, error) {
	return fetchCollection[Homework](ctx, c, CollectionHomework)
}

func (c *LiveClient) FetchDeadlines(ctx context.Context) ([]Deadline, error) {
	return fetchCollection[Deadline](ctx, c, CollectionDeadlines)
}

func (c *LiveClient) FetchGrades(ctx context.Context) ([]Grade, error) {
	return fetchCollection[Grade](ctx, c, CollectionGrades)
}

func (c *LiveClient) FetchLessons(ctx context.Context) ([]Lesson, error) {
	return fetchCollection[Lesson](ctx, c, CollectionLessons)
}

func (c *LiveClient) FetchTimetable(ctx context.Context) ([]TimetableEntry, error) {
	return fetchCollection[TimetableEntry](ctx, c, CollectionTimetable)
}
