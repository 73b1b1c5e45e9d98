package replay

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes replay errors.
type ErrorCode string

const (
	// ErrCodeMissingLabel indicates a trace event has no task node.
	ErrCodeMissingLabel ErrorCode = "MISSING_LABEL"

	// ErrCodePathExhausted indicates no candidate path explains the trace.
	ErrCodePathExhausted ErrorCode = "PATH_EXHAUSTED"

	// ErrCodeCacheConflict indicates a second write to a cache key.
	ErrCodeCacheConflict ErrorCode = "CACHE_CONFLICT"

	// ErrCodeBudgetExceeded indicates the search gave up before deciding.
	ErrCodeBudgetExceeded ErrorCode = "SEARCH_BUDGET_EXCEEDED"

	// ErrCodeCountMismatch indicates an and_join was crossed by a number of
	// branches that is not a multiple of its in-degree.
	ErrCodeCountMismatch ErrorCode = "COUNT_MISMATCH"
)

// Error is returned for per-trace replay failures.
//
// Only ErrCodeCacheConflict is fatal for a batch. Every other code fails the
// trace it was raised for and lets the batch continue.
type Error struct {
	Code    ErrorCode
	Message string

	// Event is the index of the trace event being explained, or -1.
	Event int

	// Label is the event label, if any.
	Label string

	// NodeID identifies the node involved, if any.
	NodeID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Label != "":
		return fmt.Sprintf("%s: %s (event=%d, label=%q)", e.Code, e.Message, e.Event, e.Label)
	case e.NodeID != "":
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsMissingLabel returns true if err is a missing label error.
func IsMissingLabel(err error) bool { return hasCode(err, ErrCodeMissingLabel) }

// IsPathExhausted returns true if err reports that no explanation exists.
func IsPathExhausted(err error) bool { return hasCode(err, ErrCodePathExhausted) }

// IsCountMismatch returns true if err is a join count mismatch.
func IsCountMismatch(err error) bool { return hasCode(err, ErrCodeCountMismatch) }

// IsCacheConflict returns true if err is a cache conflict.
// A cache conflict means the search is not deterministic and must be fixed.
func IsCacheConflict(err error) bool { return hasCode(err, ErrCodeCacheConflict) }

// NewMissingLabelError reports an event label without task nodes.
func NewMissingLabelError(event int, label string) *Error {
	return &Error{
		Code:    ErrCodeMissingLabel,
		Message: "no task node carries this label",
		Event:   event,
		Label:   label,
	}
}

// NewPathExhaustedError reports that every candidate was tried.
func NewPathExhaustedError(event int, label string) *Error {
	return &Error{
		Code:    ErrCodePathExhausted,
		Message: "no candidate path explains the trace",
		Event:   event,
		Label:   label,
	}
}

// NewCountMismatchError reports an and_join whose branch crossings do not
// divide evenly by its in-degree.
func NewCountMismatchError(join string, crossings, degree int64) *Error {
	return &Error{
		Code:    ErrCodeCountMismatch,
		Message: fmt.Sprintf("join crossed %d times with in-degree %d", crossings, degree),
		Event:   -1,
		NodeID:  join,
	}
}

func newCacheConflictError(key CacheKey) *Error {
	return &Error{
		Code:    ErrCodeCacheConflict,
		Message: fmt.Sprintf("cache key %s written twice", key),
		Event:   -1,
	}
}
