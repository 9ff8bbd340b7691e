package chain

import (
	"errors"
	"fmt"
)

// Domain errors. Input errors surface as 4xx and are never retried;
// invariant violations abort the enclosing transaction.
var (
	ErrCaseNotFound        = errors.New("case not found")
	ErrEventNotFound       = errors.New("case event not found")
	ErrNoPredecessor       = errors.New("no predecessor event")
	ErrPredecessorResolved = errors.New("predecessor event already resolved")
	ErrChainRootExists     = errors.New("chain already has a root event")
	ErrChainInconsistent   = errors.New("event chain is inconsistent")
)

// PredecessorError carries the event type whose unresolved tail was required
// but not available.
type PredecessorError struct {
	Required EventType
	Resolved bool
}

func (e *PredecessorError) Error() string {
	return fmt.Sprintf("Case does not have unresolved %s events.", e.Required.Label())
}

func (e *PredecessorError) Unwrap() error {
	if e.Resolved {
		return ErrPredecessorResolved
	}
	return ErrNoPredecessor
}
