package models

// ImportedSession is the fixed JSON schema the extraction model must return
// for each session found in a free-text log. Date is kept as the raw string
// so the importer owns normalization (and its error reporting).
type ImportedSession struct {
	ID        string             `json:"id,omitempty"`
	Title     string             `json:"title"`
	Date      string             `json:"date"`
	Exercises []ImportedExercise `json:"exercises"`
}

// ImportedExercise is one movement in a parsed log, sets in entry order.
type ImportedExercise struct {
	Name string        `json:"name"`
	Sets []ImportedSet `json:"sets"`
}

// ImportedSet is one parsed set. Weight is nil for bodyweight work; Unit
// defaults to kilograms when absent or unrecognized.
type ImportedSet struct {
	Weight *float64 `json:"weight"`
	Unit   string   `json:"unit"`
	Reps   int      `json:"reps"`
	Tag    string   `json:"tag"`
}
