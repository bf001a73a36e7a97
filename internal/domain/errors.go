package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by NotFoundError so callers can match either the
// sentinel or the typed error.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a malformed command or an illegal status transition
// before any event is created.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced project, milestone or task id that is
// absent from the projection.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// CycleError rejects a dependency edge that would close a cycle.
type CycleError struct {
	From string
	To   string
	Path []string
}

func (e CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("dependency %s -> %s would create cycle: %v", e.From, e.To, e.Path)
	}
	return fmt.Sprintf("dependency %s -> %s would create cycle", e.From, e.To)
}

// PersistenceError means a durable write failed. The in-memory view is rolled
// back before this surfaces, so state never runs ahead of the log.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e PersistenceError) Unwrap() error { return e.Err }

// CorruptRecordError marks a log line that failed to parse during replay. It
// is reported and skipped, never fatal.
type CorruptRecordError struct {
	Line int
	Err  error
}

func (e CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt log record at line %d: %v", e.Line, e.Err)
}
func (e CorruptRecordError) Unwrap() error { return e.Err }

// UnknownEventError aborts replay: the log parsed but carries a type or
// version this build does not understand, so any derived state would be a
// guess.
type UnknownEventError struct {
	Type    string
	Version int
}

func (e UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q version %d", e.Type, e.Version)
}
