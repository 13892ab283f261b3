package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSummary is the lightweight replication record for one completed
// session: enough for a remote session list without the full set breakdown.
type SessionSummary struct {
	SessionID     uuid.UUID `json:"session_id"`
	RoutineTitle  string    `json:"routine_title"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	DurationSec   int       `json:"duration_sec"`
	TotalSets     int       `json:"total_sets"`
	TotalReps     int       `json:"total_reps"`
	TotalVolumeKg float64   `json:"total_volume_kg"`
}

// SessionBundle is the full replication record: the summary plus every
// exercise and set, in display order.
type SessionBundle struct {
	SessionSummary
	Exercises []BundleExercise `json:"exercises"`
}

// BundleExercise mirrors an exercise for transport, keyed by position.
type BundleExercise struct {
	Position int         `json:"position"`
	Name     string      `json:"name"`
	Sets     []BundleSet `json:"sets"`
}

// BundleSet mirrors a set for transport.
type BundleSet struct {
	WeightKg  *float64   `json:"weight_kg"`
	Reps      int        `json:"reps"`
	Tag       SetTag     `json:"tag"`
	EntryUnit WeightUnit `json:"entry_unit"`
	CreatedAt time.Time  `json:"created_at"`
}

// SummaryFromSession projects a completed session onto its summary record.
// The caller must only pass ended sessions; an active one gets a zero
// EndedAt.
func SummaryFromSession(s *Session) SessionSummary {
	summary := SessionSummary{
		SessionID:     s.ID,
		RoutineTitle:  s.Title,
		StartedAt:     s.StartedAt,
		DurationSec:   s.DurationSec,
		TotalSets:     s.TotalSets,
		TotalReps:     s.TotalReps,
		TotalVolumeKg: s.TotalVolumeKg,
	}
	if s.EndedAt != nil {
		summary.EndedAt = *s.EndedAt
	}
	return summary
}

// BundleFromSession projects a completed session onto its full bundle.
func BundleFromSession(s *Session) SessionBundle {
	bundle := SessionBundle{SessionSummary: SummaryFromSession(s)}
	for _, ex := range s.Exercises {
		be := BundleExercise{Position: ex.Position, Name: ex.Name}
		for _, set := range ex.Sets {
			be.Sets = append(be.Sets, BundleSet{
				WeightKg:  set.WeightKg,
				Reps:      set.Reps,
				Tag:       set.Tag,
				EntryUnit: set.EntryUnit,
				CreatedAt: set.CreatedAt,
			})
		}
		bundle.Exercises = append(bundle.Exercises, be)
	}
	return bundle
}
