package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/importer"
	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startSessionRequest struct {
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Title      string     `json:"title"`
	Exercises  []string   `json:"exercises"`
}

func (e *Engine) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title required"})
		return
	}

	sess, err := e.store.StartSession(r.Context(), req.TemplateID, req.Title, req.Exercises)
	if err != nil {
		e.log.Error("starting session", "title", req.Title, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type addSetRequest struct {
	Exercise   string   `json:"exercise"`
	OrderIndex int      `json:"order_index"`
	Weight     *float64 `json:"weight"`
	Unit       string   `json:"unit"`
	Reps       int      `json:"reps"`
	Tag        string   `json:"tag"`
}

func (e *Engine) handleAddSet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseID(w, r)
	if !ok {
		return
	}
	var req addSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	unit, err := models.ParseWeightUnit(req.Unit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var weightKg *float64
	if req.Weight != nil {
		kg := models.ToKilograms(*req.Weight, unit)
		weightKg = &kg
	}

	err = e.store.AddSet(r.Context(), sessionID, req.Exercise, req.OrderIndex,
		models.ParseSetTag(req.Tag), weightKg, req.Reps, unit)
	if err != nil {
		e.log.Error("adding set", "session", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (e *Engine) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	setID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := e.store.DeleteSet(r.Context(), setID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (e *Engine) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseID(w, r)
	if !ok {
		return
	}
	kept, err := e.store.EndSession(r.Context(), sessionID)
	if err != nil {
		e.log.Error("ending session", "session", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"kept": kept})
}

func (e *Engine) handleHideSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := e.store.HideSession(r.Context(), sessionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if e.outbox != nil {
		if err := e.outbox.EnqueueDelete(r.Context(), sessionID); err != nil {
			e.log.Error("enqueueing remote delete", "session", sessionID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (e *Engine) handleSetRating(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := e.store.SetRating(r.Context(), sessionID, req.Rating); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (e *Engine) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseID(w, r)
	if !ok {
		return
	}
	sess, err := e.store.GetSession(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (e *Engine) handleSyncState(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseID(w, r)
	if !ok {
		return
	}
	if e.outbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sync not configured"})
		return
	}
	state, err := e.outbox.SessionState(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (e *Engine) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	sessions, err := e.store.RecentSessions(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (e *Engine) handleSessionsOnDay(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "date"), time.Local)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	sessions, err := e.store.SessionsOnDay(r.Context(), day)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (e *Engine) handleActiveDays(w http.ResponseWriter, r *http.Request) {
	month, err := time.ParseInLocation("2006-01", chi.URLParam(r, "month"), time.Local)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be YYYY-MM"})
		return
	}
	days, err := e.store.ActiveDaysInMonth(r.Context(), month)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	var result []string
	for day := range days {
		result = append(result, day.Format("2006-01-02"))
	}
	if result == nil {
		result = []string{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *Engine) handleImport(w http.ResponseWriter, r *http.Request) {
	if e.importer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "import not configured"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	imported, skipped, err := e.importer.Import(r.Context(), req.Text)
	if err != nil {
		var parseErr *importer.ParseError
		switch {
		case errors.Is(err, importer.ErrEmptyInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.As(err, &parseErr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			e.log.Error("import failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported, "skipped": skipped})
}

func (e *Engine) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	if e.outbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sync not configured"})
		return
	}
	reset, err := e.outbox.Reset(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reset": reset})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
