package apperr

import (
	"errors"
	"fmt"
)

// Sentinels for the error classes the services distinguish. Callers match with
// errors.Is; repos and services wrap them with context via fmt.Errorf("%w").
var (
	// ErrNotFound marks a referenced module/topic/student/virtual entity as absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness-invariant violation (duplicate virtual
	// module, virtual topic or in-flight generation task).
	ErrConflict = errors.New("conflict")
	// ErrInvalidState marks an operation against a terminal or mismatched state,
	// e.g. progress reported for an archived topic.
	ErrInvalidState = errors.New("invalid state")
	// ErrTransient marks a store-level failure that is safe to retry.
	ErrTransient = errors.New("transient")
)

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrTransient)
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// ItemError is one failed element of a batch operation.
type ItemError struct {
	ID     string `json:"id"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// PartialFailure reports a batch operation where some items succeeded and some
// failed. It is a result, not an abort: batch operations always attempt every
// item and collect the failures here.
type PartialFailure struct {
	Op    string      `json:"op"`
	Items []ItemError `json:"items"`
}

func (p *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d item(s) failed", p.Op, len(p.Items))
}

func (p *PartialFailure) Add(id, stage string, err error) {
	p.Items = append(p.Items, ItemError{ID: id, Stage: stage, Reason: err.Error()})
}

func (p *PartialFailure) Empty() bool { return len(p.Items) == 0 }
