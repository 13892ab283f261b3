// Package models holds the session, exercise, and set types shared by the
// local store, the importer, and the sync pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one workout, from tap-to-start through finalization. An active
// session has a nil EndedAt; totals are only meaningful once it has ended.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	TemplateID  *uuid.UUID `json:"template_id,omitempty"`
	Title       string     `json:"title"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationSec int        `json:"duration_sec"`

	Totals

	Rating  *int       `json:"rating,omitempty"`
	Summary *AISummary `json:"summary,omitempty"`

	Completed bool `json:"completed"`
	Hidden    bool `json:"hidden"`

	Exercises []Exercise `json:"exercises,omitempty"`
}

// Active reports whether the session is still in progress.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// AISummary is a cached coaching summary generated for a completed session.
type AISummary struct {
	Text        string    `json:"text"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Exercise is one movement slot within a session, ordered by Position.
type Exercise struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Sets      []Set     `json:"sets,omitempty"`
}

// Totals are the cached aggregates stamped onto a session when it ends.
type Totals struct {
	TotalSets     int     `json:"total_sets"`
	TotalReps     int     `json:"total_reps"`
	TotalVolumeKg float64 `json:"total_volume_kg"`
}

// ComputeTotals aggregates over every set of every exercise. Bodyweight sets
// (nil weight) count toward sets and reps but not volume.
func ComputeTotals(exercises []Exercise) Totals {
	var t Totals
	for _, ex := range exercises {
		for _, set := range ex.Sets {
			t.TotalSets++
			t.TotalReps += set.Reps
			if set.WeightKg != nil {
				t.TotalVolumeKg += *set.WeightKg * float64(set.Reps)
			}
		}
	}
	return t
}

// StartOfDay truncates a time to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Local().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// SameLocalDay reports whether two times fall on the same local calendar day.
func SameLocalDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}
