package replay

import (
	"errors"
	"fmt"
)

// DefaultMaxSearchNodes is the default search budget per trace.
const DefaultMaxSearchNodes = 100000

// budget counts search work for one trace and stops the search once a
// limit is reached.
//
// Every candidate path tried for an event and every join resolution attempt
// costs one unit. The search has no other termination guarantee on cyclic
// models, so the budget turns a runaway search into an inconclusive result.
type budget struct {
	limit   int
	current int
}

func newBudget(limit int) *budget {
	return &budget{limit: limit}
}

// spend charges one unit. A limit of zero or less disables the budget.
func (b *budget) spend() error {
	b.current++
	if b.limit > 0 && b.current > b.limit {
		return &BudgetExceededError{Nodes: b.current, Limit: b.limit}
	}
	return nil
}

func (b *budget) used() int {
	return b.current
}

// BudgetExceededError is returned when a trace exceeds its search budget.
// The trace is reported as inconclusive, not unfit: an explanation may exist.
type BudgetExceededError struct {
	Nodes int
	Limit int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s: search expanded %d nodes > %d limit", ErrCodeBudgetExceeded, e.Nodes, e.Limit)
}

// IsBudgetExceeded returns true if the search budget ran out.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
