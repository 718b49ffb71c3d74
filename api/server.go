// ABOUTME: HTTP API server wiring the chi router, REST handlers and GraphQL endpoint
// ABOUTME: Manual sync requests are accepted immediately and run in the background
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/google"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/metrics"
	"github.com/harperreed/schoolsync/models"
	"github.com/harperreed/schoolsync/timeline"
)

// DefaultUserID is used when a request names no user.
const DefaultUserID = "demo-user"

// SyncTrigger starts a sync for a reason; queue.Scheduler implements it.
type SyncTrigger interface {
	TriggerManualSync(ctx context.Context, reason string) (*models.SyncResult, error)
}

type Deps struct {
	DB      *db.DB
	Trigger SyncTrigger
	Google  *google.Service
}

type Options struct {
	CORSOrigins   []string
	SyncRateLimit int
	// RateLimitCounter replaces the in-process counter, e.g. with a shared store.
	RateLimitCounter httprate.LimitCounter
	Now              func() time.Time
}

type Server struct {
	db       *db.DB
	school   *db.SchoolRepository
	events   *db.CalendarEventRepository
	timeline *timeline.Builder
	trigger  SyncTrigger
	google   *google.Service
	schema   *graphql.Schema
	opts     Options

	background gosync.WaitGroup
}

func NewServer(deps Deps, opts Options) (*Server, error) {
	if opts.SyncRateLimit <= 0 {
		opts.SyncRateLimit = 10
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	school := db.NewSchoolRepository(deps.DB)
	schema, err := graphql.ParseSchema(graphQLSchema, &rootResolver{repo: school})
	if err != nil {
		return nil, fmt.Errorf("failed to parse graphql schema: %w", err)
	}
	events := db.NewCalendarEventRepository(deps.DB)

	return &Server{
		db:       deps.DB,
		school:   school,
		events:   events,
		timeline: timeline.NewBuilder(events, school),
		trigger:  deps.Trigger,
		google:   deps.Google,
		schema:   schema,
		opts:     opts,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/tasks", s.handleTasks)
	r.Get("/dashboard", s.handleDashboard)
	r.With(syncRateLimit(s.opts.SyncRateLimit, s.opts.RateLimitCounter)).Post("/sync/pronote", s.handleSyncPronote)
	r.Get("/sync/status", s.handleSyncStatus)
	r.Method(http.MethodPost, "/graphql", &relay.Handler{Schema: s.schema})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/auth/google", s.handleGoogleAuth)
	r.Get("/auth/google/callback", s.handleGoogleCallback)
	r.Get("/google/status", s.handleGoogleStatus)
	r.Post("/google/disconnect", s.handleGoogleDisconnect)
	r.Get("/google/drive/files", s.handleDriveFiles)
	r.Post("/sync/google/calendar", s.handleSyncCalendar)
	r.Post("/tasks/{taskId}/sync-note", s.handleSyncTaskNote)
	r.Get("/tasks/{taskId}/note", s.handleGetTaskNote)
	r.Get("/calendar/events", s.handleCalendarEvents)
	r.Get("/calendar/merged", s.handleCalendarMerged)
	r.Get("/calendar/exams", s.handleCalendarExams)
	return r
}

// Wait blocks until background sync triggers have returned.
func (s *Server) Wait() {
	s.background.Wait()
}

// HTTPService serves the API until its context ends, then shuts down gracefully.
type HTTPService struct {
	server          *Server
	addr            string
	shutdownTimeout time.Duration
}

func NewHTTPService(server *Server, addr string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &HTTPService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.addr,
		Handler:           h.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", h.addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	h.server.Wait()
	logging.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

func (h *HTTPService) String() string { return "http-api" }
