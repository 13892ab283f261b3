package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/auth"
	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpsertSummary(w http.ResponseWriter, r *http.Request) {
	owner, sessionID, ok := s.ownerAndSession(w, r)
	if !ok {
		return
	}

	var summary models.SessionSummary
	if err := json.NewDecoder(r.Body).Decode(&summary); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if summary.SessionID != sessionID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body session_id does not match URL"})
		return
	}

	if err := s.db.UpsertSummary(r.Context(), owner, summary); err != nil {
		s.log.Error("upserting summary", "session", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpsertBundle(w http.ResponseWriter, r *http.Request) {
	owner, sessionID, ok := s.ownerAndSession(w, r)
	if !ok {
		return
	}

	var bundle models.SessionBundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if bundle.SessionID != sessionID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body session_id does not match URL"})
		return
	}

	if err := s.db.UpsertBundle(r.Context(), owner, bundle); err != nil {
		s.log.Error("upserting bundle", "session", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	owner, sessionID, ok := s.ownerAndSession(w, r)
	if !ok {
		return
	}

	if err := s.db.DeleteSession(r.Context(), owner, sessionID); err != nil {
		s.log.Error("deleting session", "session", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}

	var after time.Time
	if v := r.URL.Query().Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "after must be RFC3339"})
			return
		}
		after = t
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	summaries, err := s.db.ListSummaries(r.Context(), owner, after, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if summaries == nil {
		summaries = []models.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleGetBundle serves another user's session bundle to an approved
// connection (or the owner themselves). Anything else reads as not found so
// probing cannot distinguish "hidden from you" from "does not exist".
func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.owner(w, r)
	if !ok {
		return
	}
	owner := chi.URLParam(r, "owner")
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}

	if viewer != owner {
		approved, err := s.db.IsApprovedConnection(r.Context(), owner, viewer)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if !approved {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
	}

	bundle, err := s.db.GetBundle(r.Context(), owner, sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if bundle == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

type connectionRequest struct {
	OwnerID  string `json:"owner_id"`
	ViewerID string `json:"viewer_id"`
}

// handleRequestConnection lets the caller ask to view someone's sessions.
// The caller is always the viewer; the body names the owner.
func (s *Server) handleRequestConnection(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.OwnerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner_id required"})
		return
	}

	if err := s.db.RequestConnection(r.Context(), req.OwnerID, viewer); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

// handleApproveConnection lets the caller grant a pending viewer access to
// their sessions. The caller is always the owner; the body names the viewer.
func (s *Server) handleApproveConnection(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.ViewerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "viewer_id required"})
		return
	}

	approved, err := s.db.ApproveConnection(r.Context(), owner, req.ViewerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !approved {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) ownerAndSession(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return "", uuid.Nil, false
	}
	return owner, sessionID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
