package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

// Sender is the remote side of the worker. *Client satisfies it; tests
// substitute a fake.
type Sender interface {
	UpsertSummary(ctx context.Context, summary models.SessionSummary) error
	UpsertBundle(ctx context.Context, bundle models.SessionBundle) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

// Worker drains the outbox on a fixed interval. Failures are recorded on
// the entry and retried with exponential backoff on later passes; nothing
// ever propagates back to the mutation path that enqueued the work.
type Worker struct {
	outbox      *Outbox
	sender      Sender
	interval    time.Duration
	batchSize   int
	maxAttempts int
	log         *slog.Logger

	done chan struct{}
}

// NewWorker constructs a Worker.
func NewWorker(outbox *Outbox, sender Sender, interval time.Duration, batchSize, maxAttempts int, log *slog.Logger) *Worker {
	return &Worker{
		outbox:      outbox,
		sender:      sender,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		log:         log,
		done:        make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled. Call in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer func() {
		ticker.Stop()
		close(w.done)
	}()

	for {
		if err := w.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("sync worker pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the worker has stopped.
func (w *Worker) Wait() {
	<-w.done
}

// ProcessBatch claims and delivers one batch of due entries. Exposed so the
// app-foreground trigger can force an immediate pass.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	start := time.Now()

	due, err := w.outbox.Due(ctx, start, w.batchSize, w.maxAttempts)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	for _, entry := range due {
		if err := w.deliver(ctx, entry); err != nil {
			failedCounter.Inc()
			w.log.Warn("sync delivery failed",
				"session", entry.SessionID, "kind", entry.Kind,
				"attempt", entry.Attempts+1, "error", err)
			if markErr := w.outbox.MarkFailed(ctx, entry.ID, err); markErr != nil {
				return markErr
			}
			continue
		}
		deliveredCounter.Inc()
		if err := w.outbox.MarkDelivered(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, entry Entry) error {
	switch entry.Kind {
	case OpSummary:
		var summary models.SessionSummary
		if err := json.Unmarshal(entry.Payload, &summary); err != nil {
			return fmt.Errorf("decoding summary payload: %w", err)
		}
		return w.sender.UpsertSummary(ctx, summary)
	case OpBundle:
		var bundle models.SessionBundle
		if err := json.Unmarshal(entry.Payload, &bundle); err != nil {
			return fmt.Errorf("decoding bundle payload: %w", err)
		}
		return w.sender.UpsertBundle(ctx, bundle)
	case OpDelete:
		return w.sender.DeleteSession(ctx, entry.SessionID)
	default:
		return fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
}
