package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// StartSession creates a new in-progress session with one exercise per
// supplied name. If an active session already exists for the same
// (templateID, title) pair, that session is returned unchanged. Starting is
// idempotent so duplicate taps and navigation races cannot fork a workout.
func (s *Store) StartSession(ctx context.Context, templateID *uuid.UUID, title string, exerciseNames []string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.ActiveSession(ctx, templateID, title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sess := &models.Session{
		ID:         uuid.New(),
		TemplateID: templateID,
		Title:      title,
		StartedAt:  s.now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, template_id, title, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID.String(), encodeUUIDPtr(templateID), title, encodeTime(sess.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	for i, name := range exerciseNames {
		ex := models.Exercise{
			ID:        uuid.New(),
			SessionID: sess.ID,
			Name:      name,
			Position:  i,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exercises (id, session_id, name, position) VALUES (?, ?, ?, ?)`,
			ex.ID.String(), sess.ID.String(), name, i)
		if err != nil {
			return nil, fmt.Errorf("inserting exercise %q: %w", name, err)
		}
		sess.Exercises = append(sess.Exercises, ex)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session start: %w", err)
	}
	return sess, nil
}

// EndSession finalizes a session. Totals are recomputed from the persisted
// set rows (not any in-memory view; set mutations may have interleaved with
// other reads). A session with zero sets is deleted outright and false is
// returned; otherwise the end timestamp, duration, and totals are stamped
// and true is returned. Registered hooks fire after a successful keep;
// their failures never affect the result.
func (s *Store) EndSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if sess == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("session %s not found", sessionID)
	}

	totals := models.ComputeTotals(sess.Exercises)
	if totals.TotalSets == 0 {
		err := s.deleteSessionTree(ctx, sessionID)
		s.mu.Unlock()
		if err != nil {
			s.log.Error("discarding empty session", "session", sessionID, "error", err)
		}
		return false, nil
	}

	ended := s.now()
	duration := int(ended.Sub(sess.StartedAt) / time.Second)

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, duration_sec = ?,
		 total_sets = ?, total_reps = ?, total_volume_kg = ?, completed = 1
		 WHERE id = ?`,
		encodeTime(ended), duration,
		totals.TotalSets, totals.TotalReps, totals.TotalVolumeKg,
		sessionID.String())
	if err != nil {
		// The in-memory view is not rolled back; the repair sweep reconciles
		// totals drift on the next cold start.
		s.log.Error("persisting session end", "session", sessionID, "error", err)
	}

	sess.EndedAt = &ended
	sess.DurationSec = duration
	sess.Totals = totals
	sess.Completed = true

	hooks := make([]EndedHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	// Fire-and-forget: replication and summary generation are best-effort
	// and must never fail or roll back the local end-session decision.
	for _, hook := range hooks {
		hook(ctx, sess)
	}
	return true, nil
}

// deleteSessionTree removes a session and all owned rows in one transaction.
func (s *Store) deleteSessionTree(ctx context.Context, sessionID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := sessionID.String()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sets WHERE exercise_id IN (SELECT id FROM exercises WHERE session_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// HideSession soft-hides a session: it disappears from every query but the
// rows stay in place.
func (s *Store) HideSession(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET hidden = 1 WHERE id = ?`, sessionID.String())
	if err != nil {
		return fmt.Errorf("hiding session: %w", err)
	}
	return nil
}

// SetRating records the user's rating for a completed session.
func (s *Store) SetRating(ctx context.Context, sessionID uuid.UUID, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET rating = ? WHERE id = ?`, rating, sessionID.String())
	if err != nil {
		return fmt.Errorf("setting rating: %w", err)
	}
	return nil
}

// SetAISummary caches a generated coaching summary on a session.
func (s *Store) SetAISummary(ctx context.Context, sessionID uuid.UUID, summary models.AISummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET summary_text = ?, summary_model = ?, summary_generated_at = ? WHERE id = ?`,
		summary.Text, summary.Model, encodeTime(summary.GeneratedAt), sessionID.String())
	if err != nil {
		return fmt.Errorf("caching summary: %w", err)
	}
	return nil
}

// RepairZeroTotalSessions backfills totals for ended sessions whose cached
// totals desynced from their persisted sets (a crash between "add set" and
// "recompute" leaves them at zero). Run on every cold start. Returns the
// number of sessions repaired.
func (s *Store) RepairZeroTotalSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT s.id FROM sessions s
		 JOIN exercises e ON e.session_id = s.id
		 JOIN sets t ON t.exercise_id = e.id
		 WHERE s.ended_at IS NOT NULL AND s.total_sets = 0`)
	if err != nil {
		return 0, fmt.Errorf("finding zero-total sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return 0, fmt.Errorf("scanning session id: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return 0, fmt.Errorf("parsing session id %q: %w", idStr, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		exercises, err := s.loadExercises(ctx, id)
		if err != nil {
			return repaired, err
		}
		totals := models.ComputeTotals(exercises)
		if totals.TotalSets == 0 {
			continue
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET total_sets = ?, total_reps = ?, total_volume_kg = ? WHERE id = ?`,
			totals.TotalSets, totals.TotalReps, totals.TotalVolumeKg, id.String())
		if err != nil {
			return repaired, fmt.Errorf("backfilling totals for %s: %w", id, err)
		}
		s.log.Info("repaired session totals", "session", id, "sets", totals.TotalSets)
		repaired++
	}
	return repaired, nil
}
