package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertSummary writes a session summary row keyed by (owner, session id).
// Repeating the call with the same key updates in place: last write wins,
// never a duplicate row.
func (db *DB) UpsertSummary(ctx context.Context, ownerID string, s models.SessionSummary) error {
	_, err := db.Pool.Exec(ctx,
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
		ownerID, s.SessionID, s.RoutineTitle, s.StartedAt, s.EndedAt, s.DurationSec,
		s.TotalSets, s.TotalReps, s.TotalVolumeKg)
	if err != nil {
		return fmt.Errorf("upserting summary: %w", err)
	}
	return nil
}

// GetSummary retrieves one summary scoped to the owner. Returns nil when
// the row does not exist for that owner. Rows belonging to anyone else are
// indistinguishable from absent.
func (db *DB) GetSummary(ctx context.Context, ownerID string, sessionID uuid.UUID) (*models.SessionSummary, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT session_id, routine_title, started_at, ended_at, duration_sec,
		        total_sets, total_reps, total_volume_kg
		 FROM session_summaries
		 WHERE owner_id = $1 AND session_id = $2`,
		ownerID, sessionID)

	var s models.SessionSummary
	err := row.Scan(&s.SessionID, &s.RoutineTitle, &s.StartedAt, &s.EndedAt,
		&s.DurationSec, &s.TotalSets, &s.TotalReps, &s.TotalVolumeKg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	return &s, nil
}

// ListSummaries returns the owner's summaries ended after the given time,
// newest first.
func (db *DB) ListSummaries(ctx context.Context, ownerID string, after time.Time, limit int) ([]models.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT session_id, routine_title, started_at, ended_at, duration_sec,
		        total_sets, total_reps, total_volume_kg
		 FROM session_summaries
		 WHERE owner_id = $1 AND ended_at > $2
		 ORDER BY ended_at DESC
		 LIMIT $3`,
		ownerID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var result []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.SessionID, &s.RoutineTitle, &s.StartedAt, &s.EndedAt,
			&s.DurationSec, &s.TotalSets, &s.TotalReps, &s.TotalVolumeKg); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// DeleteSession removes the owner's summary and bundle rows for a session.
func (db *DB) DeleteSession(ctx context.Context, ownerID string, sessionID uuid.UUID) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM bundle_sets WHERE owner_id = $1 AND session_id = $2`,
		`DELETE FROM bundle_exercises WHERE owner_id = $1 AND session_id = $2`,
		`DELETE FROM session_summaries WHERE owner_id = $1 AND session_id = $2`,
	} {
		if _, err := tx.Exec(ctx, stmt, ownerID, sessionID); err != nil {
			return fmt.Errorf("deleting session rows: %w", err)
		}
	}
	return tx.Commit(ctx)
}
