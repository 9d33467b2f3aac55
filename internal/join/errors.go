package join

import (
	"errors"
	"fmt"
)

// ErrUnbalancedLeave is reported when Leave is called with nothing pending.
var ErrUnbalancedLeave = errors.New("leave called without a matching enter")

// ProtocolViolation describes a misuse of a Group by its caller.
type ProtocolViolation struct {
	// Group is the name of the group that was misused
	Group string

	// Generation is the number of batches the group had drained when the violation happened
	Generation uint64

	// Err is the underlying violation, ErrUnbalancedLeave for now
	Err error
}

// Error returns the error message
func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("join group %q (generation %d): %v", e.Group, e.Generation, e.Err)
}

// Unwrap returns the underlying violation
func (e *ProtocolViolation) Unwrap() error {
	return e.Err
}
