package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the taxonomy of errors the façade surfaces, per spec §7.
type ErrorKind string

const (
	ErrBadTask         ErrorKind = "BAD_TASK"
	ErrDuplicateName   ErrorKind = "DUPLICATE_NAME"
	ErrNotFound        ErrorKind = "NOT_FOUND"
	ErrSelfLoop        ErrorKind = "SELF_LOOP"
	ErrCycleDetected   ErrorKind = "CYCLE_DETECTED"
	ErrBadGateID       ErrorKind = "BAD_GATE_ID"
	ErrUnknownGateKind ErrorKind = "UNKNOWN_GATE_KIND"
)

// SchedulerError carries a stable Kind alongside the usual wrapped message,
// so callers can branch with errors.As instead of string matching.
type SchedulerError struct {
	Kind ErrorKind
	Msg  string
	// Path is populated only for ErrCycleDetected: the cycle u -> v -> ... -> u.
	Path []string
}

func (e *SchedulerError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newErr(kind ErrorKind, format string, args ...any) *SchedulerError {
	return &SchedulerError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func newCycleErr(path []string) *SchedulerError {
	return &SchedulerError{
		Kind: ErrCycleDetected,
		Msg:  "adding this edge would close a cycle",
		Path: path,
	}
}

// KindOf extracts the ErrorKind from err, if any, falling back to "" for
// errors not produced by this package.
func KindOf(err error) ErrorKind {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
