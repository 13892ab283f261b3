package importer

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the free-text log is empty or whitespace.
var ErrEmptyInput = errors.New("import text is empty")

// ParseError carries a text-understanding failure verbatim to the caller.
// Unlike sync, imports are user-initiated and must be visible.
type ParseError struct {
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing workout log: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("parsing workout log: %s", e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ImportError wraps a persistence failure during the import commit.
type ImportError struct {
	Detail string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("importing sessions: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("importing sessions: %s", e.Detail)
}

func (e *ImportError) Unwrap() error { return e.Err }
