package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bhagyeshsagole/atlas/internal/models"
)

// InsertCompletedSessions persists a batch of already-finalized sessions in
// a single transaction. A session whose id already exists is replaced in
// place (the importer's legitimate re-import path); the old exercise/set
// tree is dropped with it.
func (s *Store) InsertCompletedSessions(ctx context.Context, sessions []*models.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback()

	for _, sess := range sessions {
		id := sess.ID.String()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM sets WHERE exercise_id IN (SELECT id FROM exercises WHERE session_id = ?)`, id); err != nil {
			return fmt.Errorf("clearing sets for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("clearing exercises for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("clearing session %s: %w", id, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (id, template_id, title, started_at, ended_at, duration_sec,
			 total_sets, total_reps, total_volume_kg, completed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			id, encodeUUIDPtr(sess.TemplateID), sess.Title,
			encodeTime(sess.StartedAt), encodeTimePtr(sess.EndedAt), sess.DurationSec,
			sess.TotalSets, sess.TotalReps, sess.TotalVolumeKg)
		if err != nil {
			return fmt.Errorf("inserting session %s: %w", id, err)
		}

		for _, ex := range sess.Exercises {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO exercises (id, session_id, name, position) VALUES (?, ?, ?, ?)`,
				ex.ID.String(), id, ex.Name, ex.Position)
			if err != nil {
				return fmt.Errorf("inserting exercise %q: %w", ex.Name, err)
			}
			for _, set := range ex.Sets {
				var weight sql.NullFloat64
				if set.WeightKg != nil {
					weight = sql.NullFloat64{Float64: *set.WeightKg, Valid: true}
				}
				_, err = tx.ExecContext(ctx,
					`INSERT INTO sets (id, exercise_id, weight_kg, reps, tag, entry_unit, created_at)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					set.ID.String(), ex.ID.String(), weight, set.Reps,
					string(set.Tag), string(set.EntryUnit), encodeTime(set.CreatedAt))
				if err != nil {
					return fmt.Errorf("inserting set: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}
