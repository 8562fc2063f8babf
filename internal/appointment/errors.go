package appointment

import (
	"errors"

	"github.com/hackgods/provider-appointment-booking/internal/party"
)

var (
	ErrInvalidSlot     = errors.New("invalid slot")
	ErrInvalidCount    = errors.New("invalid count")
	ErrMissingParty    = errors.New("provider and client are required")
	ErrSlotUnavailable = errors.New("slot not available for this provider")
	ErrNotFound        = errors.New("appointment not found")
	ErrUnknownParty    = errors.New("appointment references an unknown party")
	ErrProviderBusy    = errors.New("provider calendar is being updated, please retry")

	// ErrRoleMismatch is shared with the party package so callers can match
	// a single sentinel at the boundary.
	ErrRoleMismatch = party.ErrRoleMismatch
)

// ValidationError marks malformed input that was rejected before touching
// storage.
type ValidationError struct {
	err error
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

func validationError(kind error, msg string) error {
	return &ValidationError{err: kind, msg: msg}
}
