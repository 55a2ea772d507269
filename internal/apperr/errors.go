package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrCyclicMove   = errors.New("cyclic move")
)

// CyclicMoveError reports a re-parent operation that would make a node a
// descendant of itself.
type CyclicMoveError struct {
	NodeID   string
	TargetID string
}

func (e *CyclicMoveError) Error() string {
	return fmt.Sprintf("moving %s under %s would create a cycle", e.NodeID, e.TargetID)
}

func (e *CyclicMoveError) Is(target error) bool {
	return target == ErrCyclicMove
}
