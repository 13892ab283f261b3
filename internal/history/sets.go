package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// AddSet appends a performed set to the named exercise of a session,
// persisting immediately. The target exercise is resolved by position index
// first, then by case-insensitive name, and is created at the next free
// position when neither matches. No range validation happens here; this is
// a permissive logging surface, not a validated ledger.
func (s *Store) AddSet(ctx context.Context, sessionID uuid.UUID, exerciseName string, orderIndex int, tag models.SetTag, weightKg *float64, reps int, unit models.WeightUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exerciseID, err := s.resolveExercise(ctx, sessionID, exerciseName, orderIndex)
	if err != nil {
		return err
	}

	set := models.Set{
		ID:         uuid.New(),
		ExerciseID: exerciseID,
		WeightKg:   weightKg,
		Reps:       reps,
		Tag:        tag,
		EntryUnit:  unit,
		CreatedAt:  s.now(),
	}

	var weight sql.NullFloat64
	if weightKg != nil {
		weight = sql.NullFloat64{Float64: *weightKg, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sets (id, exercise_id, weight_kg, reps, tag, entry_unit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		set.ID.String(), exerciseID.String(), weight, reps, string(tag), string(unit),
		encodeTime(set.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting set: %w", err)
	}
	return nil
}

// resolveExercise implements the lookup-or-create rule: position index
// first, then case-insensitive name, else a new exercise appended at the
// next position.
func (s *Store) resolveExercise(ctx context.Context, sessionID uuid.UUID, name string, orderIndex int) (uuid.UUID, error) {
	var idStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM exercises WHERE session_id = ? AND position = ?`,
		sessionID.String(), orderIndex).Scan(&idStr)
	if err == nil {
		return uuid.Parse(idStr)
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("resolving exercise by position: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM exercises WHERE session_id = ? AND LOWER(name) = ? ORDER BY position LIMIT 1`,
		sessionID.String(), strings.ToLower(name)).Scan(&idStr)
	if err == nil {
		return uuid.Parse(idStr)
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("resolving exercise by name: %w", err)
	}

	var next sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(position) + 1 FROM exercises WHERE session_id = ?`,
		sessionID.String()).Scan(&next)
	if err != nil {
		return uuid.Nil, fmt.Errorf("finding next position: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exercises (id, session_id, name, position) VALUES (?, ?, ?, ?)`,
		id.String(), sessionID.String(), name, next.Int64)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating exercise %q: %w", name, err)
	}
	return id, nil
}

// DeleteSet removes a performed set. Sets are otherwise immutable once
// logged; removal is the only mutation.
func (s *Store) DeleteSet(ctx context.Context, setID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sets WHERE id = ?`, setID.String())
	if err != nil {
		return fmt.Errorf("deleting set: %w", err)
	}
	return nil
}
