package service

import "errors"

// Failure taxonomy of the engine. Rejected calls wrap one of these so callers
// can branch with errors.Is; storage and transfer failures are passed through.
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTiming     = errors.New("invalid timing")
	ErrNothingToDo       = errors.New("nothing to do")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAlreadyExists     = errors.New("already exists")
	ErrReentrantCall     = errors.New("reentrant call")
)
