package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMove is returned when a move cannot be played in the
	// current game state. Retrying the same move will not help.
	ErrInvalidMove = errors.New("invalid move")

	// ErrIllegalPosition marks a board the engine cannot operate on, such
	// as one missing a king. It is a precondition violation.
	ErrIllegalPosition = errors.New("illegal position")
)

// InvalidMoveError carries the rejected move and why it was rejected.
// It unwraps to ErrInvalidMove.
type InvalidMoveError struct {
	Move   Move
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("%v %s: %s", ErrInvalidMove, e.Move, e.Reason)
}

func (e *InvalidMoveError) Unwrap() error {
	return ErrInvalidMove
}

func invalidMove(move Move, format string, args ...any) error {
	return &InvalidMoveError{Move: move, Reason: fmt.Sprintf(format, args...)}
}
