// Package summary generates a short coaching summary for a completed
// session and caches it on the session record. Generation is best-effort:
// a failure is logged and the session is left untouched.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/models"
)

const coachPrompt = `You are a concise strength coach. Given one workout in
plain text, reply with 2-3 sentences: what was trained, anything notable
about the volume or load, and one short suggestion. No headings, no lists.`

// Chatter is the model collaborator. *llm.Client satisfies it.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Generator produces and caches coaching summaries.
type Generator struct {
	model Chatter
	store *history.Store
	log   *slog.Logger

	now func() time.Time
}

// New creates a Generator.
func New(model Chatter, store *history.Store, log *slog.Logger) *Generator {
	return &Generator{model: model, store: store, log: log, now: time.Now}
}

// SessionEnded is the history store hook. Generation calls out over the
// network, so it runs on its own goroutine and the end-session path returns
// immediately; all failures are logged and swallowed. The context is
// detached so the request finishing does not cancel the model call.
func (g *Generator) SessionEnded(ctx context.Context, sess *models.Session) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := g.Generate(ctx, sess); err != nil {
			g.log.Error("generating session summary", "session", sess.ID, "error", err)
		}
	}()
}

// Generate asks the model for a coaching summary of the session and caches
// it on the session record. A session that already carries a summary is
// returned as-is.
func (g *Generator) Generate(ctx context.Context, sess *models.Session) (*models.AISummary, error) {
	if sess.Summary != nil {
		return sess.Summary, nil
	}

	text, err := g.model.Chat(ctx, coachPrompt, Digest(sess))
	if err != nil {
		return nil, fmt.Errorf("summary model call: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("summary model returned empty text")
	}

	result := models.AISummary{
		Text:        text,
		Model:       g.model.Model(),
		GeneratedAt: g.now(),
	}
	if err := g.store.SetAISummary(ctx, sess.ID, result); err != nil {
		return nil, fmt.Errorf("caching summary: %w", err)
	}
	return &result, nil
}

// Digest renders a session as the compact plain-text form the coach model
// reads. One line per set, grouped under exercise headers.
func Digest(sess *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %d min, %d sets, %d reps, %.0f kg volume\n",
		sess.Title, sess.DurationSec/60, sess.TotalSets, sess.TotalReps, sess.TotalVolumeKg)
	for _, ex := range sess.Exercises {
		fmt.Fprintf(&b, "%s:\n", ex.Name)
		for _, set := range ex.Sets {
			if set.WeightKg != nil {
				fmt.Fprintf(&b, "  %.1f kg x %d (%s)\n", *set.WeightKg, set.Reps, set.Tag)
			} else {
				fmt.Fprintf(&b, "  bodyweight x %d (%s)\n", set.Reps, set.Tag)
			}
		}
	}
	return b.String()
}
