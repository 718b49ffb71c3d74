// ABOUTME: REST handlers for the Google account lifecycle, notes, calendar and Drive
// ABOUTME: Users are named by a userId query or body parameter
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/schoolsync/db"
	"github.com/harperreed/schoolsync/google"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/timeline"
)

type userRequest struct {
	UserID    string `json:"userId"`
	DaysAhead int    `json:"daysAhead"`
}

func queryUserID(r *http.Request) string {
	if id := r.URL.Query().Get("userId"); id != "" {
		return id
	}
	return DefaultUserID
}

// bodyUser reads userId from the JSON body, falling back to the query string.
func bodyUser(r *http.Request) (userRequest, error) {
	var req userRequest
	if err := decodeOptional(r, &req); err != nil {
		return req, err
	}
	if req.UserID == "" {
		req.UserID = queryUserID(r)
	}
	return req, nil
}

// googleError maps a missing link to 401 and everything else to a generic 500.
func googleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, google.ErrNoToken) {
		writeError(w, http.StatusUnauthorized, "Google account not connected")
		return
	}
	internalError(w, r, err)
}

func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": s.google.Auth().AuthURL(queryUserID(r))})
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Authorization code is required")
		return
	}
	userID := r.URL.Query().Get("state")
	if userID == "" {
		userID = DefaultUserID
	}

	_, err := s.google.Auth().Exchange(r.Context(), userID, code)
	if errors.Is(err, google.ErrIncompleteToken) {
		writeError(w, http.StatusInternalServerError, "Failed to obtain tokens")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Google account connected successfully",
		"userId":  userID,
	})
}

func (s *Server) handleGoogleStatus(w http.ResponseWriter, r *http.Request) {
	userID := queryUserID(r)
	token, err := s.google.Status(r.Context(), userID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	body := map[string]any{"connected": token != nil, "userId": userID}
	if token != nil {
		body["scopes"] = token.Scope
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	req, err := bodyUser(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.google.Disconnect(r.Context(), req.UserID); err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Google account disconnected"})
}

func (s *Server) handleSyncCalendar(w http.ResponseWriter, r *http.Request) {
	req, err := bodyUser(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	count, err := s.google.SyncCalendarEvents(r.Context(), req.UserID, req.DaysAhead)
	if err != nil {
		googleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "eventsSynced": count})
}

func (s *Server) handleSyncTaskNote(w http.ResponseWriter, r *http.Request) {
	req, err := bodyUser(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	task, err := s.school.GetTask(r.Context(), chi.URLParam(r, "taskId"))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}

	link, err := s.google.SyncTaskNote(r.Context(), task, req.UserID)
	if err != nil {
		googleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "success",
		"googleDocId":  link.DocID,
		"googleDocUrl": link.URL,
	})
}

func (s *Server) handleGetTaskNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.google.TaskNote(r.Context(), chi.URLParam(r, "taskId"), queryUserID(r))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Task note not found")
		return
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: note})
}

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	start, end, err := timeline.ParseWindow(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"), s.opts.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.events.GetEventsByDateRange(r.Context(), start, end)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: events})
}

func (s *Server) handleCalendarMerged(w http.ResponseWriter, r *http.Request) {
	start, end, err := timeline.ParseWindow(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"), s.opts.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	merged, err := s.timeline.Build(r.Context(), start, end)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleCalendarExams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataBody{Data: s.google.ExamCountdown(r.Context(), queryUserID(r))})
}

func (s *Server) handleDriveFiles(w http.ResponseWriter, r *http.Request) {
	userID := queryUserID(r)
	files, err := s.google.DriveFiles(r.Context(), userID, r.URL.Query().Get("name"))
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("Drive listing failed")
		googleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody{Data: files})
}
