package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/intervox-ai/intervox/internal/session"
)

type sessionJSON struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	UserEmail     string     `json:"userEmail"`
	InterviewType string     `json:"interviewType"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime"`
	TotalTokens   int64      `json:"totalTokens"`
	Completed     bool       `json:"completed"`
}

func toSessionJSON(s session.Session) sessionJSON {
	out := sessionJSON{
		ID:            s.ID,
		UserID:        s.UserID,
		UserEmail:     s.UserEmail,
		InterviewType: s.InterviewType,
		StartTime:     s.StartTime,
		TotalTokens:   s.TotalTokens,
		Completed:     s.Completed,
	}
	if !s.EndTime.IsZero() {
		end := s.EndTime
		out.EndTime = &end
	}
	return out
}

// requireStore writes a 503 and returns false when no session store is
// configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "session store is not configured")
		return false
	}
	return true
}

type createSessionRequest struct {
	UserID        string `json:"userId"`
	UserEmail     string `json:"userEmail"`
	InterviewType string `json:"interviewType"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	id, err := s.deps.Store.Create(r.Context(), req.UserID, req.UserEmail, req.InterviewType)
	if err != nil {
		s.log.Error("session creation failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

type addTokensRequest struct {
	TokenCount int64 `json:"tokenCount"`
}

func (s *Server) handleAddTokens(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	var req addTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.TokenCount < 0 {
		writeError(w, http.StatusBadRequest, "tokenCount must not be negative")
		return
	}

	if err := s.deps.Store.AddTokens(r.Context(), id, req.TokenCount); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.log.Error("token update failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Store.Complete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.log.Error("session completion failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")
	sess, err := s.deps.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.log.Error("session lookup failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	userID := chi.URLParam(r, "userID")
	sessions, err := s.deps.Store.List(r.Context(), userID)
	if err != nil {
		s.log.Error("session list failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]sessionJSON, len(sessions))
	for i, sess := range sessions {
		out[i] = toSessionJSON(sess)
	}
	writeJSON(w, http.StatusOK, out)
}
