package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeStructural indicates the graph violates a structural invariant
	// (degree of start/end, dangling edge, duplicate id, ...).
	ErrCodeStructural ErrorCode = "STRUCTURAL_INCONSISTENCY"

	// ErrCodeUnknownElement indicates a reference to a node or edge that is
	// not part of the graph.
	ErrCodeUnknownElement ErrorCode = "UNKNOWN_ELEMENT"
)

// StructuralError is returned when graph construction or mutation would
// break a structural invariant. It is fatal for the operation that produced it.
type StructuralError struct {
	Code    ErrorCode
	Message string

	// NodeID identifies the offending node, if any.
	NodeID string

	// Edge identifies the offending edge, if any.
	Edge *EdgeKey
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	switch {
	case e.Edge != nil:
		return fmt.Sprintf("%s: %s (edge=%s)", e.Code, e.Message, e.Edge)
	case e.NodeID != "":
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func structuralf(nodeID, format string, args ...any) *StructuralError {
	return &StructuralError{
		Code:    ErrCodeStructural,
		Message: fmt.Sprintf(format, args...),
		NodeID:  nodeID,
	}
}

func edgeErrorf(code ErrorCode, key EdgeKey, format string, args ...any) *StructuralError {
	return &StructuralError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Edge:    &key,
	}
}

// IsStructuralError returns true if err is or wraps a StructuralError.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}
