package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// isOwner reports whether caller holds the owner role
func (e *Engine) isOwner(caller common.Address) bool {
	return caller == e.owner
}

// isModerator reports whether caller may run moderator actions.
// The owner is accepted as well.
func (e *Engine) isModerator(caller common.Address) bool {
	return caller == e.moderator || e.isOwner(caller)
}

func (e *Engine) requireModerator(caller common.Address) error {
	if !e.isModerator(caller) {
		return fmt.Errorf("%w: not allowed", ErrAccessDenied)
	}
	return nil
}

func (e *Engine) requireOwner(caller common.Address) error {
	if !e.isOwner(caller) {
		return fmt.Errorf("%w: caller is not the owner", ErrAccessDenied)
	}
	return nil
}
