package params

import (
	"errors"
	"fmt"
)

// ErrEmptyTable is returned when a selection is asked of zero sets.
var ErrEmptyTable = errors.New("no parameter sets")

// MalformedTableError reports a table whose shape does not match its header.
type MalformedTableError struct {
	Path   string
	Line   int
	Reason string
}

func (e *MalformedTableError) Error() string {
	return fmt.Sprintf("malformed parameter table %s:%d: %s", e.Path, e.Line, e.Reason)
}

// FieldError reports a missing or unparseable field of a parameter set.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("field %q (%q): %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}
