package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	outbox, err := NewOutbox(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return outbox
}

func testSummary(id uuid.UUID) models.SessionSummary {
	return models.SessionSummary{
		SessionID:     id,
		RoutineTitle:  "Push Day",
		StartedAt:     time.Now().Add(-time.Hour),
		EndedAt:       time.Now(),
		DurationSec:   3600,
		TotalSets:     2,
		TotalReps:     8,
		TotalVolumeKg: 430,
	}
}

func TestEnqueueAndDue(t *testing.T) {
	outbox := newTestOutbox(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, outbox.EnqueueSummary(ctx, testSummary(id)))
	require.NoError(t, outbox.EnqueueDelete(ctx, id))

	due, err := outbox.Due(ctx, time.Now(), 10, 5)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, OpSummary, due[0].Kind)
	assert.Equal(t, OpDelete, due[1].Kind)
	assert.Equal(t, id, due[0].SessionID)

	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(due[0].Payload, &summary))
	assert.Equal(t, "Push Day", summary.RoutineTitle)
}

func TestSessionEndedHookEnqueuesBoth(t *testing.T) {
	outbox := newTestOutbox(t)
	ctx := context.Background()

	ended := time.Now()
	weight := 50.0
	sess := &models.Session{
		ID:        uuid.New(),
		Title:     "Push Day",
		StartedAt: ended.Add(-time.Hour),
		EndedAt:   &ended,
		Totals:    models.Totals{TotalSets: 1, TotalReps: 5, TotalVolumeKg: 250},
		Exercises: []models.Exercise{{Name: "Bench Press", Sets: []models.Set{
			{WeightKg: &weight, Reps: 5, Tag: models.TagStandard, EntryUnit: models.UnitKilograms},
		}}},
	}
	outbox.SessionEnded(ctx, sess)

	due, err := outbox.Due(ctx, time.Now(), 10, 5)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, OpSummary, due[0].Kind)
	assert.Equal(t, OpBundle, due[1].Kind)
}

func TestDueRespectsBackoff(t *testing.T) {
	outbox := newTestOutbox(t)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, outbox.EnqueueSummary(ctx, testSummary(id)))

	due, err := outbox.Due(ctx, time.Now(), 10, 5)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, outbox.MarkFailed(ctx, due[0].ID, errors.New("connection refused")))

	// Immediately after the failure the entry is inside its 30s window.
	due, err = outbox.Due(ctx, time.Now(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Past the window it comes back.
	due, err = outbox.Due(ctx, time.Now().Add(31*time.Second), 10, 5)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "connection refused", due[0].LastError)
}

func TestDueSkipsParkedEntries(t *testing.T) {
	outbox := newTestOutbox(t)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, outbox.EnqueueSummary(ctx, testSummary(id)))

	for i := 0; i < 3; i++ {
		due, err := outbox.Due(ctx, time.Now().Add(time.Hour), 10, 3)
		require.NoError(t, err)
		require.Len(t, due, 1)
		require.NoError(t, outbox.MarkFailed(ctx, due[0].ID, errors.New("down")))
	}

	// Attempt cap reached; entry is parked even far past any backoff.
	due, err := outbox.Due(ctx, time.Now().Add(24*time.Hour), 10, 3)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoff(1))
	assert.Equal(t, 60*time.Second, backoff(2))
	assert.Equal(t, 2*time.Minute, backoff(3))
	assert.Equal(t, 16*time.Minute, backoff(6))
	assert.Equal(t, 30*time.Minute, backoff(7))
	assert.Equal(t, 30*time.Minute, backoff(40))
}

func TestResetRestoresParkedEntries(t *testing.T) {
	outbox := newTestOutbox(t)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, outbox.EnqueueSummary(ctx, testSummary(id)))

	due, err := outbox.Due(ctx, time.Now(), 10, 1)
	require.NoError(t, err)
	require.NoError(t, outbox.MarkFailed(ctx, due[0].ID, errors.New("down")))

	due, err = outbox.Due(ctx, time.Now().Add(time.Hour), 10, 1)
	require.NoError(t, err)
	require.Empty(t, due)

	reset, err := outbox.Reset(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	due, err = outbox.Due(ctx, time.Now(), 10, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Zero(t, due[0].Attempts)
}

func TestSessionStateMachine(t *testing.T) {
	outbox := newTestOutbox(t)
	ctx := context.Background()
	id := uuid.New()

	state, err := outbox.SessionState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateLocalOnly, state)

	require.NoError(t, outbox.EnqueueSummary(ctx, testSummary(id)))
	state, err = outbox.SessionState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatePending, state)

	due, err := outbox.Due(ctx, time.Now(), 10, 5)
	require.NoError(t, err)
	require.NoError(t, outbox.MarkFailed(ctx, due[0].ID, errors.New("down")))
	state, err = outbox.SessionState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)

	require.NoError(t, outbox.MarkDelivered(ctx, due[0].ID))
	state, err = outbox.SessionState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateSynced, state)
}
