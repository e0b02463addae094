package relmap

import (
	"errors"
	"fmt"
)

// ErrCycleDetected indicates a read re-entered an aggregate path it was
// already materializing. Self-referential aggregates cannot be mapped.
var ErrCycleDetected = errors.New("relmap: cycle detected in aggregate")

// ErrUnsupportedComponentType indicates the write path met an array whose
// component type has no database representation.
var ErrUnsupportedComponentType = errors.New("relmap: unsupported array component type")

// ExceptionTranslator turns a driver error into a data-access error. A nil
// return means the translator cannot categorize the error; callers fall back
// to UncategorizedSQLError.
type ExceptionTranslator interface {
	Translate(task, sql string, err error) error
}

// UncategorizedSQLError wraps a driver error no translator could categorize,
// preserving the attempted task and query text.
type UncategorizedSQLError struct {
	Task string
	SQL  string
	Err  error
}

func (e *UncategorizedSQLError) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("relmap: uncategorized SQL error during %s [%s]: %v", e.Task, e.SQL, e.Err)
	}
	return fmt.Sprintf("relmap: uncategorized SQL error during %s: %v", e.Task, e.Err)
}

func (e *UncategorizedSQLError) Unwrap() error {
	return e.Err
}

// translateError runs the configured translator chain and falls back to an
// UncategorizedSQLError carrying the original cause.
func (c *Converter) translateError(task, sql string, err error) error {
	if c.translator != nil {
		if translated := c.translator.Translate(task, sql, err); translated != nil {
			return translated
		}
	}
	return &UncategorizedSQLError{Task: task, SQL: sql, Err: err}
}
