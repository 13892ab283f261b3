package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// OpKind is the kind of pending remote operation.
type OpKind string

const (
	OpSummary OpKind = "summary"
	OpBundle  OpKind = "bundle"
	OpDelete  OpKind = "delete"
)

// SyncState is the per-session replication state.
type SyncState string

const (
	StateLocalOnly SyncState = "local_only"
	StatePending   SyncState = "pending"
	StateSynced    SyncState = "synced"
	StateFailed    SyncState = "failed"
)

const outboxSchema = `
CREATE TABLE IF NOT EXISTS sync_outbox (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	kind            TEXT NOT NULL,
	payload         TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT,
	enqueued_at     INTEGER NOT NULL,
	last_attempt_at INTEGER,
	delivered_at    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON sync_outbox(delivered_at, session_id);
`

// Entry is one pending (or delivered) outbox row.
type Entry struct {
	ID            int64
	SessionID     uuid.UUID
	Kind          OpKind
	Payload       []byte
	Attempts      int
	LastError     string
	EnqueuedAt    time.Time
	LastAttemptAt *time.Time
	DeliveredAt   *time.Time
}

// Outbox is the durable queue of pending remote operations. It lives in the
// same SQLite file as the history store so an enqueue rides on local
// durability; a sync that is in flight when the app dies is simply retried
// after the next start.
type Outbox struct {
	db  *sql.DB
	log *slog.Logger
}

// NewOutbox creates the outbox table if needed.
func NewOutbox(db *sql.DB, log *slog.Logger) (*Outbox, error) {
	if _, err := db.Exec(outboxSchema); err != nil {
		return nil, fmt.Errorf("creating outbox schema: %w", err)
	}
	return &Outbox{db: db, log: log}, nil
}

// SessionEnded is the history store hook: it enqueues the summary and the
// full bundle for a freshly completed session. Enqueue failures are logged
// and swallowed; replication must never fail the local end-session path.
func (o *Outbox) SessionEnded(ctx context.Context, sess *models.Session) {
	if err := o.EnqueueSummary(ctx, models.SummaryFromSession(sess)); err != nil {
		o.log.Error("enqueueing summary", "session", sess.ID, "error", err)
	}
	if err := o.EnqueueBundle(ctx, models.BundleFromSession(sess)); err != nil {
		o.log.Error("enqueueing bundle", "session", sess.ID, "error", err)
	}
}

// EnqueueSummary queues a summary upsert.
func (o *Outbox) EnqueueSummary(ctx context.Context, summary models.SessionSummary) error {
	return o.enqueue(ctx, summary.SessionID, OpSummary, summary)
}

// EnqueueBundle queues a bundle upsert.
func (o *Outbox) EnqueueBundle(ctx context.Context, bundle models.SessionBundle) error {
	return o.enqueue(ctx, bundle.SessionID, OpBundle, bundle)
}

// EnqueueDelete queues a remote delete for a hidden session.
func (o *Outbox) EnqueueDelete(ctx context.Context, sessionID uuid.UUID) error {
	return o.enqueue(ctx, sessionID, OpDelete, map[string]string{"session_id": sessionID.String()})
}

func (o *Outbox) enqueue(ctx context.Context, sessionID uuid.UUID, kind OpKind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling outbox payload: %w", err)
	}
	_, err = o.db.ExecContext(ctx,
		`INSERT INTO sync_outbox (session_id, kind, payload, enqueued_at) VALUES (?, ?, ?, ?)`,
		sessionID.String(), string(kind), string(data), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("inserting outbox entry: %w", err)
	}
	return nil
}

// Due returns undelivered entries whose backoff window has elapsed and
// whose attempt count is below the cap, oldest first.
func (o *Outbox) Due(ctx context.Context, now time.Time, batchSize, maxAttempts int) ([]Entry, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT id, session_id, kind, payload, attempts, COALESCE(last_error, ''),
		        enqueued_at, last_attempt_at, delivered_at
		 FROM sync_outbox
		 WHERE delivered_at IS NULL AND attempts < ?
		 ORDER BY id ASC LIMIT ?`,
		maxAttempts, batchSize)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var due []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e.LastAttemptAt != nil && now.Before(e.LastAttemptAt.Add(backoff(e.Attempts))) {
			continue
		}
		due = append(due, *e)
	}
	return due, rows.Err()
}

// backoff doubles from 30s per attempt, capped at 30 minutes.
func backoff(attempts int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempts && d < 30*time.Minute; i++ {
		d *= 2
	}
	if d > 30*time.Minute {
		d = 30 * time.Minute
	}
	return d
}

// MarkDelivered stamps an entry as delivered.
func (o *Outbox) MarkDelivered(ctx context.Context, id int64) error {
	_, err := o.db.ExecContext(ctx,
		`UPDATE sync_outbox SET delivered_at = ?, last_error = NULL WHERE id = ?`,
		time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("marking outbox entry delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and its error. The entry stays queued
// until the attempt cap parks it; parked entries remain visible for manual
// retry via Reset.
func (o *Outbox) MarkFailed(ctx context.Context, id int64, attemptErr error) error {
	_, err := o.db.ExecContext(ctx,
		`UPDATE sync_outbox SET attempts = attempts + 1, last_error = ?, last_attempt_at = ?
		 WHERE id = ?`,
		attemptErr.Error(), time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("marking outbox entry failed: %w", err)
	}
	return nil
}

// Reset clears attempt counts on undelivered entries. This backs the
// app-foreground and manual retry triggers.
func (o *Outbox) Reset(ctx context.Context) (int64, error) {
	res, err := o.db.ExecContext(ctx,
		`UPDATE sync_outbox SET attempts = 0, last_attempt_at = NULL WHERE delivered_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("resetting outbox: %w", err)
	}
	return res.RowsAffected()
}

// SessionState derives the replication state machine position for a session:
// local-only → pending → synced | failed.
func (o *Outbox) SessionState(ctx context.Context, sessionID uuid.UUID) (SyncState, error) {
	var pending, failed, total int
	err := o.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE delivered_at IS NULL),
		   COUNT(*) FILTER (WHERE delivered_at IS NULL AND attempts > 0),
		   COUNT(*)
		 FROM sync_outbox WHERE session_id = ?`,
		sessionID.String()).Scan(&pending, &failed, &total)
	if err != nil {
		return StateLocalOnly, fmt.Errorf("querying sync state: %w", err)
	}

	switch {
	case total == 0:
		return StateLocalOnly, nil
	case failed > 0:
		return StateFailed, nil
	case pending > 0:
		return StatePending, nil
	default:
		return StateSynced, nil
	}
}

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var (
		e           Entry
		sessionID   string
		kind        string
		payload     string
		enqueuedAt  int64
		lastAttempt sql.NullInt64
		deliveredAt sql.NullInt64
	)
	err := row.Scan(&e.ID, &sessionID, &kind, &payload, &e.Attempts, &e.LastError,
		&enqueuedAt, &lastAttempt, &deliveredAt)
	if err != nil {
		return nil, fmt.Errorf("scanning outbox entry: %w", err)
	}
	e.SessionID, err = uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("parsing outbox session id %q: %w", sessionID, err)
	}
	e.Kind = OpKind(kind)
	e.Payload = []byte(payload)
	e.EnqueuedAt = time.Unix(0, enqueuedAt)
	if lastAttempt.Valid {
		t := time.Unix(0, lastAttempt.Int64)
		e.LastAttemptAt = &t
	}
	if deliveredAt.Valid {
		t := time.Unix(0, deliveredAt.Int64)
		e.DeliveredAt = &t
	}
	return &e, nil
}
