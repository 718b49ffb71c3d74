package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"github.com/harperreed/schoolsync/config"
	"github.com/harperreed/schoolsync/db"
)

// fakeGoogle serves the subset of Calendar, Docs, Drive and the token endpoint used here.
type fakeGoogle struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	events        []map[string]any
	eventQueries  []map[string]string
	docs          map[string]string
	created       []string
	batches       []docs.BatchUpdateDocumentRequest
	files         []map[string]any
	driveQueries  []string
	tokenRequests int
	failCalendar  bool
	nextDoc       int
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{t: t, docs: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", f.token)
	mux.HandleFunc("GET /calendars/primary/events", f.listEvents)
	mux.HandleFunc("POST /v1/documents", f.createDoc)
	mux.HandleFunc("GET /v1/documents/{id}", f.getDoc)
	mux.HandleFunc("POST /v1/documents/{id}", f.batchUpdate)
	mux.HandleFunc("GET /files", f.listFiles)
	mux.HandleFunc("GET /files/{id}", f.getFile)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGoogle) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenRequests++
	f.mu.Unlock()
	require.NoError(f.t, r.ParseForm())
	if r.Form.Get("grant_type") == "authorization_code" {
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		f.writeJSON(w, map[string]any{
			"access_token":  "exchanged-access",
			"refresh_token": "exchanged-refresh",
			"expires_in":    3600,
			"token_type":    "Bearer",
			"scope":         "https://www.googleapis.com/auth/documents",
		})
		return
	}
	f.writeJSON(w, map[string]any{
		"access_token": "refreshed-access",
		"expires_in":   3600,
		"token_type":   "Bearer",
	})
}

func (f *fakeGoogle) listEvents(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	f.eventQueries = append(f.eventQueries, map[string]string{
		"q":            q.Get("q"),
		"singleEvents": q.Get("singleEvents"),
		"orderBy":      q.Get("orderBy"),
		"maxResults":   q.Get("maxResults"),
		"timeMin":      q.Get("timeMin"),
		"timeMax":      q.Get("timeMax"),
		"auth":         r.Header.Get("Authorization"),
	})
	if f.failCalendar {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}
	f.writeJSON(w, map[string]any{"items": f.events})
}

func (f *fakeGoogle) createDoc(w http.ResponseWriter, r *http.Request) {
	var doc docs.Document
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&doc))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextDoc++
	id := fmt.Sprintf("doc-%d", f.nextDoc)
	f.docs[id] = ""
	f.created = append(f.created, doc.Title)
	f.writeJSON(w, map[string]any{"documentId": id, "title": doc.Title})
}

func (f *fakeGoogle) getDoc(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.docs[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
		return
	}
	// The body's implicit trailing newline occupies the last index.
	f.writeJSON(w, map[string]any{
		"documentId": r.PathValue("id"),
		"body": map[string]any{"content": []any{
			map[string]any{"endIndex": 1, "sectionBreak": map[string]any{}},
			map[string]any{
				"startIndex": 1,
				"endIndex":   1 + len(content) + 1,
				"paragraph": map[string]any{"elements": []any{
					map[string]any{"textRun": map[string]any{"content": content}},
				}},
			},
		}},
	})
}

func (f *fakeGoogle) batchUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("id"), ":batchUpdate")
	require.True(f.t, ok, "unexpected docs path %s", r.URL.Path)
	var req docs.BatchUpdateDocumentRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, req)
	for _, op := range req.Requests {
		switch {
		case op.DeleteContentRange != nil:
			f.docs[id] = ""
		case op.InsertText != nil:
			f.docs[id] = op.InsertText.Text + f.docs[id]
		}
	}
	f.writeJSON(w, map[string]any{"documentId": id})
}

func (f *fakeGoogle) listFiles(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.driveQueries = append(f.driveQueries, r.URL.Query().Get("q")+"|"+r.URL.Query().Get("pageSize"))
	f.writeJSON(w, map[string]any{"files": f.files})
}

func (f *fakeGoogle) getFile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file["id"] == r.PathValue("id") {
			f.writeJSON(w, file)
			return
		}
	}
	http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
}

func (f *fakeGoogle) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:4000/auth/google/callback",
		Scopes:       []string{"https://www.googleapis.com/auth/documents"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.srv.URL + "/auth",
			TokenURL: f.srv.URL + "/token",
		},
	}
}

type testEnv struct {
	fake    *fakeGoogle
	db      *db.DB
	tokens  *db.TokenRepository
	service *Service
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	fake := newFakeGoogle(t)
	tokens := db.NewTokenRepository(database)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	auth := NewAuth(fake.oauthConfig(), tokens)
	svc := NewService(auth, database,
		WithAPIOptions(option.WithEndpoint(fake.srv.URL+"/")),
		WithClock(func() time.Time { return now }))
	return &testEnv{fake: fake, db: database, tokens: tokens, service: svc, now: now}
}

// connect stores a token that stays valid for the test's duration.
func (e *testEnv) connect(t *testing.T, userID string) {
	t.Helper()
	_, err := e.tokens.UpsertToken(context.Background(), userID, "access-"+userID, "refresh-"+userID, "docs", time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, err)
}
