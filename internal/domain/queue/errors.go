package queue

import "errors"

// Errors returned by the queue engine. Handlers branch on these to pick the
// HTTP status; callers can retry gate failures once the precondition is
// externally resolved.
var (
	ErrEntryNotFound          = errors.New("queue entry not found")
	ErrNoPendingBills         = errors.New("patient has no pending bills to pay")
	ErrNoPendingPrescriptions = errors.New("patient has no pending prescriptions")
	ErrPendingBills           = errors.New("patient has pending bills")
	ErrInvalidTransition      = errors.New("invalid queue status transition")
	ErrTerminalEntry          = errors.New("queue entry is completed or cancelled; archive it instead")
	ErrNotTerminal            = errors.New("queue entry is not completed or cancelled")
)
