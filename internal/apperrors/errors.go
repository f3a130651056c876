package apperrors

import "errors"

// Capacity errors. User-facing, never retried.
var (
	ErrSoldOut       = errors.New("no remaining capacity for the requested slot")
	ErrLimitExceeded = errors.New("ticket count exceeds the per-account purchase limit")
)

// Hold lifecycle errors. User-facing, the flow must be restarted.
var (
	ErrHoldExpired     = errors.New("reservation hold has expired")
	ErrHoldExists      = errors.New("an active hold already exists for this account and slot")
	ErrInvalidPhase    = errors.New("reservation is not in a phase that allows this operation")
	ErrAlreadyQueued   = errors.New("an active waiting session already exists for this slot")
	ErrAlreadyResolved = errors.New("transfer request has already been resolved")
	ErrEventNotOpen    = errors.New("event is outside its sale window")
	ErrSessionUnknown  = errors.New("waiting session does not exist")
)

// Challenge errors. Expiry closes the booking attempt entirely.
var (
	ErrChallengeRequired = errors.New("anti-automation challenge has not been solved")
	ErrChallengeExpired  = errors.New("anti-automation challenge has expired")
	ErrChallengeWrong    = errors.New("challenge answer is incorrect")
)

// Transient-consistency errors. Retried locally with bounded backoff and
// surfaced only after the retry budget is exhausted.
var (
	ErrPaymentNotVisible = errors.New("payment order is not yet visible on the ledger")
)

// Payment terminal errors.
var (
	ErrPaymentUnconfirmed = errors.New("payment was not confirmed within the retry budget")
	ErrPaymentFailed      = errors.New("payment rail reported a terminal failure")
)

// Verification errors. User-facing with a guided remediation path.
var (
	ErrFamilyMatchFailed = errors.New("document evidence does not match both sender and recipient")
	ErrNoWalletAccount   = errors.New("recipient has no wallet account able to receive value")
)

// Generic errors.
var (
	ErrNotFound     = errors.New("requested resource does not exist")
	ErrUnauthorized = errors.New("caller is not authorized")
	ErrForbidden    = errors.New("operation is forbidden for caller")
)

// IsTransient reports whether err is safe to retry because it is caused
// only by replication or propagation lag.
func IsTransient(err error) bool {
	return errors.Is(err, ErrPaymentNotVisible)
}
