// Package importer converts unstructured free-text workout logs into
// finalized history sessions, with strict idempotency against re-import.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bhagyeshsagole/atlas/internal/history"
	"github.com/bhagyeshsagole/atlas/internal/llm"
	"github.com/bhagyeshsagole/atlas/internal/models"
	"github.com/google/uuid"
)

const extractionPrompt = `You convert free-text workout logs into JSON.
Return ONLY a JSON array of sessions, no prose, matching exactly:
[{"title": string, "date": "YYYY-MM-DD or ISO-8601",
  "exercises": [{"name": string,
    "sets": [{"weight": number or null, "unit": "kg" or "lb",
              "reps": integer, "tag": "warmup"|"standard"|"dropset"}]}]}]
A null weight means a bodyweight set. Keep exercises and sets in the order
they appear in the log. Do not invent data that is not in the log.`

// Extractor is the text-understanding collaborator. *llm.Client satisfies it.
type Extractor interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Importer parses free text through the extraction model and writes the
// results into the local history store.
type Importer struct {
	model Extractor
	store *history.Store
	log   *slog.Logger
}

// New creates an Importer.
func New(model Extractor, store *history.Store, log *slog.Logger) *Importer {
	return &Importer{model: model, store: store, log: log}
}

// ParseFreeText sends the raw log to the extraction model and validates the
// returned schema. The model's failures surface verbatim as *ParseError;
// empty input is rejected up front with ErrEmptyInput.
func (i *Importer) ParseFreeText(ctx context.Context, text string) ([]models.ImportedSession, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	reply, err := i.model.Chat(ctx, extractionPrompt, text)
	if err != nil {
		return nil, &ParseError{Detail: "text-understanding call failed", Err: err}
	}

	var sessions []models.ImportedSession
	if err := json.Unmarshal([]byte(llm.ExtractJSON(reply)), &sessions); err != nil {
		return nil, &ParseError{Detail: "model returned malformed JSON", Err: err}
	}

	for _, sess := range sessions {
		if _, err := NormalizeDate(sess.Date); err != nil {
			return nil, &ParseError{Detail: fmt.Sprintf("session %q has unparseable date %q", sess.Title, sess.Date), Err: err}
		}
	}
	return sessions, nil
}

// NormalizeDate interprets a bare YYYY-MM-DD string as local-timezone
// start-of-day, falling back to ISO-8601 with time.
func NormalizeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is neither YYYY-MM-DD nor ISO-8601", s)
	}
	return t.Local(), nil
}

// ImportSessions writes parsed sessions into the store. Candidates missing
// a title or any exercise are skipped. A candidate whose title already
// appears on the same local calendar day is skipped as a duplicate, unless
// its id matches the existing record exactly, which is the legitimate
// re-import/update path. The whole batch lands in one commit.
func (i *Importer) ImportSessions(ctx context.Context, sessions []models.ImportedSession) (imported, skipped int, err error) {
	var batch []*models.Session
	batchDays := make(map[string]bool)

	for _, cand := range sessions {
		if strings.TrimSpace(cand.Title) == "" || len(cand.Exercises) == 0 {
			skipped++
			continue
		}

		startedAt, err := NormalizeDate(cand.Date)
		if err != nil {
			skipped++
			i.log.Warn("skipping session with bad date", "title", cand.Title, "date", cand.Date)
			continue
		}

		id, idKnown := parseCandidateID(cand.ID)
		sameRecord := false
		if idKnown {
			sameRecord, err = i.store.SessionExists(ctx, id)
			if err != nil {
				return imported, skipped, &ImportError{Detail: "checking existing id", Err: err}
			}
		}
		// Dedup consults both the store and the batch so far; two
		// same-title candidates on one day in a single import collapse
		// to the first.
		dayKey := cand.Title + "|" + models.StartOfDay(startedAt).Format("2006-01-02")
		if !sameRecord {
			if batchDays[dayKey] {
				skipped++
				continue
			}
			dup, err := i.store.TitleExistsOnDay(ctx, cand.Title, startedAt)
			if err != nil {
				return imported, skipped, &ImportError{Detail: "checking duplicate day", Err: err}
			}
			if dup {
				skipped++
				continue
			}
		}

		batchDays[dayKey] = true
		batch = append(batch, buildSession(id, cand, startedAt))
		imported++
	}

	if err := i.store.InsertCompletedSessions(ctx, batch); err != nil {
		return 0, skipped, &ImportError{Detail: "committing batch", Err: err}
	}
	return imported, skipped, nil
}

// Import is the end-to-end path: parse, then import.
func (i *Importer) Import(ctx context.Context, text string) (imported, skipped int, err error) {
	sessions, err := i.ParseFreeText(ctx, text)
	if err != nil {
		return 0, 0, err
	}
	return i.ImportSessions(ctx, sessions)
}

func parseCandidateID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.New(), false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.New(), false
	}
	return id, true
}

// buildSession converts one parsed candidate into a finalized session.
// Weights convert to kilograms here, based on each set's declared unit;
// totals are computed the same way EndSession computes them. Set creation
// timestamps step by one second to preserve entry order.
func buildSession(id uuid.UUID, cand models.ImportedSession, startedAt time.Time) *models.Session {
	sess := &models.Session{
		ID:        id,
		Title:     cand.Title,
		StartedAt: startedAt,
		Completed: true,
	}
	ended := startedAt
	sess.EndedAt = &ended

	tick := 0
	for pos, ex := range cand.Exercises {
		exercise := models.Exercise{
			ID:        uuid.New(),
			SessionID: id,
			Name:      ex.Name,
			Position:  pos,
		}
		for _, set := range ex.Sets {
			unit, err := models.ParseWeightUnit(set.Unit)
			if err != nil {
				unit = models.UnitKilograms
			}
			var weightKg *float64
			if set.Weight != nil {
				w := models.ToKilograms(*set.Weight, unit)
				weightKg = &w
			}
			exercise.Sets = append(exercise.Sets, models.Set{
				ID:         uuid.New(),
				ExerciseID: exercise.ID,
				WeightKg:   weightKg,
				Reps:       set.Reps,
				Tag:        models.ParseSetTag(set.Tag),
				EntryUnit:  unit,
				CreatedAt:  startedAt.Add(time.Duration(tick) * time.Second),
			})
			tick++
		}
		sess.Exercises = append(sess.Exercises, exercise)
	}

	sess.Totals = models.ComputeTotals(sess.Exercises)
	return sess
}
