// ABOUTME: REST handlers for SIS data and the manual sync trigger
// ABOUTME: Reads go straight to the repository; sync is fire-and-forget
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/queue"
)

type dataBody struct {
	Data any `json:"data"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.opts.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.school.GetTasks(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: tasks})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.school.GetDashboard(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: summary})
}

// handleSyncPronote accepts the request and triggers the sync in the background.
func (s *Server) handleSyncPronote(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		result, err := s.trigger.TriggerManualSync(ctx, queue.TriggerManual)
		if err != nil {
			logging.Error().Err(err).Str("triggered_by", queue.TriggerManual).Msg("Manual sync failed")
			return
		}
		if result.Queued {
			logging.Info().Str("job_id", result.JobID).Msg("Manual sync queued")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	states, err := db.GetAllSyncStates(r.Context(), s.db)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: states})
}
