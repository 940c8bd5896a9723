package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrConflict              = errors.New("conflict")
	ErrIdempotencyRequired   = errors.New("idempotency key required")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrAmountMismatch        = errors.New("amount must match escrow amount")
	ErrInvalidState          = errors.New("invalid escrow state")
	ErrInvalidSplit          = errors.New("split percentages must sum to 100")
	ErrTemplateNotFound      = errors.New("license template not found")
	ErrNotOwned              = errors.New("license not owned by caller")
	ErrNotTransferable       = errors.New("license template forbids transfer")
	ErrSellerMismatch        = errors.New("seller does not match asset creator")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")
	ErrInvalidEnvelope       = errors.New("invalid envelope")
)

// CompensatedError carries the original failure of a purchase step together
// with the outcome of the escrow refund that compensated it. The cause stays
// reachable through Unwrap so callers can match the underlying sentinel.
type CompensatedError struct {
	Stage           string
	Cause           error
	CompensationOK  bool
	CompensationErr error
}

func (e *CompensatedError) Error() string {
	if e.CompensationOK {
		return fmt.Sprintf("%s failed (escrow refunded): %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s failed (escrow refund also failed: %v): %v", e.Stage, e.CompensationErr, e.Cause)
}

func (e *CompensatedError) Unwrap() error { return e.Cause }
