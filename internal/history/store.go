// Package history is the single source of truth for session, exercise, and
// set records. All mutations are serialized through one store so the UI and
// background workers observe consistent state.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                   TEXT PRIMARY KEY,
	template_id          TEXT,
	title                TEXT NOT NULL,
	started_at           INTEGER NOT NULL,
	ended_at             INTEGER,
	duration_sec         INTEGER NOT NULL DEFAULT 0,
	total_sets           INTEGER NOT NULL DEFAULT 0,
	total_reps           INTEGER NOT NULL DEFAULT 0,
	total_volume_kg      REAL NOT NULL DEFAULT 0,
	rating               INTEGER,
	summary_text         TEXT,
	summary_model        TEXT,
	summary_generated_at INTEGER,
	completed            INTEGER NOT NULL DEFAULT 0,
	hidden               INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at);

CREATE TABLE IF NOT EXISTS exercises (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	position   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exercises_session ON exercises(session_id);

CREATE TABLE IF NOT EXISTS sets (
	id          TEXT PRIMARY KEY,
	exercise_id TEXT NOT NULL REFERENCES exercises(id) ON DELETE CASCADE,
	weight_kg   REAL,
	reps        INTEGER NOT NULL,
	tag         TEXT NOT NULL,
	entry_unit  TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sets_exercise ON sets(exercise_id);
`

// EndedHook is invoked after a session is successfully finalized and kept.
// Hook failures are logged and never propagate to EndSession's caller.
type EndedHook func(ctx context.Context, session *models.Session)

// Store is the SQLite-backed local history store. A single mutex serializes
// all writers; reads go straight to the database.
type Store struct {
	db  *sql.DB
	log *slog.Logger

	mu    sync.Mutex
	hooks []EndedHook

	// now is swapped out by tests that need a fixed clock.
	now func() time.Time
}

// Open opens (or creates) the history database at the given path.
func Open(path string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	// One connection keeps the pragmas in force and serializes writers at
	// the driver level as well.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db, log: log, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the shared handle so the sync outbox can live in the same file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// OnSessionEnded registers a hook fired after EndSession keeps a session.
func (s *Store) OnSessionEnded(hook EndedHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// --- timestamp codec ---
//
// Timestamps are stored as Unix nanoseconds so day-boundary queries are
// plain integer range scans and no driver string format is involved.

func encodeTime(t time.Time) int64 {
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	return time.Unix(0, n)
}

func encodeTimePtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func decodeTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := decodeTime(n.Int64)
	return &t
}

func encodeUUIDPtr(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

// sessionColumns is the canonical select list shared by all session scans.
const sessionColumns = `id, template_id, title, started_at, ended_at, duration_sec,
	total_sets, total_reps, total_volume_kg, rating,
	summary_text, summary_model, summary_generated_at, completed, hidden`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess        models.Session
		idStr       string
		templateID  sql.NullString
		startedAt   int64
		endedAt     sql.NullInt64
		rating      sql.NullInt64
		sumText     sql.NullString
		sumModel    sql.NullString
		sumGenAt    sql.NullInt64
	)

	err := row.Scan(&idStr, &templateID, &sess.Title, &startedAt, &endedAt,
		&sess.DurationSec, &sess.TotalSets, &sess.TotalReps, &sess.TotalVolumeKg,
		&rating, &sumText, &sumModel, &sumGenAt, &sess.Completed, &sess.Hidden)
	if err != nil {
		return nil, err
	}

	sess.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing session id %q: %w", idStr, err)
	}
	if templateID.Valid {
		tid, err := uuid.Parse(templateID.String)
		if err != nil {
			return nil, fmt.Errorf("parsing template id %q: %w", templateID.String, err)
		}
		sess.TemplateID = &tid
	}
	sess.StartedAt = decodeTime(startedAt)
	sess.EndedAt = decodeTimePtr(endedAt)
	if rating.Valid {
		r := int(rating.Int64)
		sess.Rating = &r
	}
	if sumText.Valid {
		sess.Summary = &models.AISummary{
			Text:  sumText.String,
			Model: sumModel.String,
		}
		if sumGenAt.Valid {
			sess.Summary.GeneratedAt = decodeTime(sumGenAt.Int64)
		}
	}
	return &sess, nil
}
