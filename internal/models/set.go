package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SetTag classifies a set's role within an exercise.
type SetTag string

const (
	TagWarmup   SetTag = "warmup"
	TagStandard SetTag = "standard"
	TagDropset  SetTag = "dropset"
)

// ParseSetTag maps free-form tag text onto a known tag. Anything
// unrecognized counts as a standard working set.
func ParseSetTag(s string) SetTag {
	switch SetTag(strings.ToLower(strings.TrimSpace(s))) {
	case TagWarmup:
		return TagWarmup
	case TagDropset:
		return TagDropset
	default:
		return TagStandard
	}
}

// WeightUnit is the unit a weight was entered in. Storage is always
// kilograms; the entry unit is kept so the original value can be shown back.
type WeightUnit string

const (
	UnitKilograms WeightUnit = "kg"
	UnitPounds    WeightUnit = "lb"
)

const kilogramsPerPound = 0.45359237

// ParseWeightUnit validates a unit string.
func ParseWeightUnit(s string) (WeightUnit, error) {
	switch WeightUnit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitKilograms, "":
		return UnitKilograms, nil
	case UnitPounds, "lbs":
		return UnitPounds, nil
	}
	return "", fmt.Errorf("unknown weight unit %q", s)
}

// ToKilograms converts a weight in the given unit to kilograms.
func ToKilograms(weight float64, unit WeightUnit) float64 {
	if unit == UnitPounds {
		return weight * kilogramsPerPound
	}
	return weight
}

// Set is one performed set. A nil WeightKg means a bodyweight set: it counts
// toward set and rep totals but contributes nothing to volume.
type Set struct {
	ID         uuid.UUID  `json:"id"`
	ExerciseID uuid.UUID  `json:"exercise_id"`
	WeightKg   *float64   `json:"weight_kg"`
	Reps       int        `json:"reps"`
	Tag        SetTag     `json:"tag"`
	EntryUnit  WeightUnit `json:"entry_unit"`
	CreatedAt  time.Time  `json:"created_at"`
}
