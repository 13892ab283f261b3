package storage

import (
	"context"
	"fmt"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// UpsertBundle writes a session's full exercise/set breakdown in one
// transaction. The summary row is upserted and the child rows replaced, so
// a repeated upsert converges on the latest payload instead of appending.
func (db *DB) UpsertBundle(ctx context.Context, ownerID string, b models.SessionBundle) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning bundle upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO session_summaries
		 (owner_id, session_id, routine_title, started_at, ended_at, duration_sec,
		  total_sets, total_reps, total_volume_kg, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		 ON CONFLICT (owner_id, session_id) DO UPDATE SET
		   routine_title = EXCLUDED.routine_title,
		   started_at = EXCLUDED.started_at,
		   ended_at = EXCLUDED.ended_at,
		   duration_sec = EXCLUDED.duration_sec,
		   total_sets = EXCLUDED.total_sets,
		   total_reps = EXCLUDED.total_reps,
		   total_volume_kg = EXCLUDED.total_volume_kg,
		   updated_at = now()`,
		ownerID, b.SessionID, b.RoutineTitle, b.StartedAt, b.EndedAt, b.DurationSec,
		b.TotalSets, b.TotalReps, b.TotalVolumeKg)
	if err != nil {
		return fmt.Errorf("upserting bundle summary: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM bundle_sets WHERE owner_id = $1 AND session_id = $2`,
		ownerID, b.SessionID); err != nil {
		return fmt.Errorf("clearing bundle sets: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM bundle_exercises WHERE owner_id = $1 AND session_id = $2`,
		ownerID, b.SessionID); err != nil {
		return fmt.Errorf("clearing bundle exercises: %w", err)
	}

	for _, ex := range b.Exercises {
		_, err = tx.Exec(ctx,
			`INSERT INTO bundle_exercises (owner_id, session_id, position, name)
			 VALUES ($1,$2,$3,$4)`,
			ownerID, b.SessionID, ex.Position, ex.Name)
		if err != nil {
			return fmt.Errorf("inserting bundle exercise: %w", err)
		}
		for i, set := range ex.Sets {
			_, err = tx.Exec(ctx,
				`INSERT INTO bundle_sets
				 (owner_id, session_id, position, set_index, weight_kg, reps, tag, entry_unit, created_at)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				ownerID, b.SessionID, ex.Position, i, set.WeightKg, set.Reps,
				string(set.Tag), string(set.EntryUnit), set.CreatedAt)
			if err != nil {
				return fmt.Errorf("inserting bundle set: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// GetBundle retrieves a session with its ordered exercise and set rows,
// scoped to the given owner. Returns nil when no such row exists for that
// owner.
func (db *DB) GetBundle(ctx context.Context, ownerID string, sessionID uuid.UUID) (*models.SessionBundle, error) {
	summary, err := db.GetSummary(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}

	bundle := &models.SessionBundle{SessionSummary: *summary}

	exRows, err := db.Pool.Query(ctx,
		`SELECT position, name FROM bundle_exercises
		 WHERE owner_id = $1 AND session_id = $2
		 ORDER BY position ASC`,
		ownerID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying bundle exercises: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var ex models.BundleExercise
		if err := exRows.Scan(&ex.Position, &ex.Name); err != nil {
			return nil, fmt.Errorf("scanning bundle exercise: %w", err)
		}
		bundle.Exercises = append(bundle.Exercises, ex)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT position, weight_kg, reps, tag, entry_unit, created_at FROM bundle_sets
		 WHERE owner_id = $1 AND session_id = $2
		 ORDER BY position ASC, set_index ASC`,
		ownerID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying bundle sets: %w", err)
	}
	defer setRows.Close()

	byPosition := make(map[int]int, len(bundle.Exercises))
	for i, ex := range bundle.Exercises {
		byPosition[ex.Position] = i
	}

	for setRows.Next() {
		var (
			position int
			set      models.BundleSet
			tag      string
			unit     string
		)
		if err := setRows.Scan(&position, &set.WeightKg, &set.Reps, &tag, &unit, &set.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning bundle set: %w", err)
		}
		set.Tag = models.SetTag(tag)
		set.EntryUnit = models.WeightUnit(unit)
		if i, ok := byPosition[position]; ok {
			bundle.Exercises[i].Sets = append(bundle.Exercises[i].Sets, set)
		}
	}
	return bundle, setRows.Err()
}
