package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// visibleCompleted filters every history read: hidden sessions, in-progress
// sessions, and zero-total leftovers are never surfaced.
const visibleCompleted = `hidden = 0 AND ended_at IS NOT NULL AND total_sets > 0`

// GetSession loads a session with its full exercise/set tree, regardless of
// completion or visibility. Returns nil when the id is unknown.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id.String())

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess.Exercises, err = s.loadExercises(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ActiveSession returns the in-progress session for (templateID, title), or
// nil when none exists. At most one such session can exist at a time.
func (s *Store) ActiveSession(ctx context.Context, templateID *uuid.UUID, title string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		 WHERE hidden = 0 AND ended_at IS NULL AND title = ? AND template_id `
	args := []any{title}
	if templateID == nil {
		query += `IS NULL`
	} else {
		query += `= ?`
		args = append(args, templateID.String())
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active session: %w", err)
	}

	sess.Exercises, err = s.loadExercises(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RecentSessions returns the most recently ended sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE `+visibleCompleted+`
		 ORDER BY ended_at DESC LIMIT ?`, limit)
}

// SessionsOnDay returns sessions whose start falls on the given local
// calendar day, oldest first.
func (s *Store) SessionsOnDay(ctx context.Context, day time.Time) ([]models.Session, error) {
	start := models.StartOfDay(day)
	end := start.AddDate(0, 0, 1)
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE `+visibleCompleted+` AND started_at >= ? AND started_at < ?
		 ORDER BY started_at ASC`,
		encodeTime(start), encodeTime(end))
}

// ActiveDaysInMonth returns the set of local start-of-day dates in the given
// month that have at least one completed session. Feeds the calendar view.
func (s *Store) ActiveDaysInMonth(ctx context.Context, month time.Time) (map[time.Time]bool, error) {
	local := month.Local()
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
	end := start.AddDate(0, 1, 0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT started_at FROM sessions
		 WHERE `+visibleCompleted+` AND started_at >= ? AND started_at < ?`,
		encodeTime(start), encodeTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying active days: %w", err)
	}
	defer rows.Close()

	days := make(map[time.Time]bool)
	for rows.Next() {
		var startedAt int64
		if err := rows.Scan(&startedAt); err != nil {
			return nil, fmt.Errorf("scanning active day: %w", err)
		}
		days[models.StartOfDay(decodeTime(startedAt))] = true
	}
	return days, rows.Err()
}

// EndedSessionsAfter returns sessions ended strictly after t, oldest first.
func (s *Store) EndedSessionsAfter(ctx context.Context, t time.Time, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.querySessions(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE `+visibleCompleted+` AND ended_at > ?
		 ORDER BY ended_at ASC LIMIT ?`,
		encodeTime(t), limit)
}

// SessionExists reports whether any session row (hidden or not) has this id.
func (s *Store) SessionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE id = ?`, id.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking session id: %w", err)
	}
	return count > 0, nil
}

// TitleExistsOnDay reports whether a session with the exact title starts on
// the same local calendar day. This is the import dedup window.
func (s *Store) TitleExistsOnDay(ctx context.Context, title string, day time.Time) (bool, error) {
	start := models.StartOfDay(day)
	end := start.AddDate(0, 0, 1)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE hidden = 0 AND title = ? AND started_at >= ? AND started_at < ?`,
		title, encodeTime(start), encodeTime(end)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking title on day: %w", err)
	}
	return count > 0, nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, *sess)
	}
	return result, rows.Err()
}

// loadExercises loads the exercise/set tree for a session. Exercises come
// back in position order; sets in creation-time order, the canonical
// display order.
func (s *Store) loadExercises(ctx context.Context, sessionID uuid.UUID) ([]models.Exercise, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, position FROM exercises
		 WHERE session_id = ? ORDER BY position ASC`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var exercises []models.Exercise
	for rows.Next() {
		var (
			ex    models.Exercise
			idStr string
		)
		if err := rows.Scan(&idStr, &ex.Name, &ex.Position); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		ex.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parsing exercise id %q: %w", idStr, err)
		}
		ex.SessionID = sessionID
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range exercises {
		exercises[i].Sets, err = s.loadSets(ctx, exercises[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return exercises, nil
}

func (s *Store) loadSets(ctx context.Context, exerciseID uuid.UUID) ([]models.Set, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, weight_kg, reps, tag, entry_unit, created_at FROM sets
		 WHERE exercise_id = ? ORDER BY created_at ASC`, exerciseID.String())
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	var sets []models.Set
	for rows.Next() {
		var (
			set       models.Set
			idStr     string
			weight    sql.NullFloat64
			tag       string
			unit      string
			createdAt int64
		)
		if err := rows.Scan(&idStr, &weight, &set.Reps, &tag, &unit, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		set.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parsing set id %q: %w", idStr, err)
		}
		if weight.Valid {
			w := weight.Float64
			set.WeightKg = &w
		}
		set.ExerciseID = exerciseID
		set.Tag = models.SetTag(tag)
		set.EntryUnit = models.WeightUnit(unit)
		set.CreatedAt = decodeTime(createdAt)
		sets = append(sets, set)
	}
	return sets, rows.Err()
}
