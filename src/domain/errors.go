package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds raised by the lifecycle engine. Callers classify failures with
// errors.Is against these sentinels; the dynamic detail travels in the
// wrapping message.
var (
	// ErrIllegalAction means appending the action would violate the branch
	// state machine or the inforequest is closed.
	ErrIllegalAction = errors.New("illegal action")

	// ErrMissingRequiredField and ErrForbiddenField mean the action payload
	// is inconsistent with its type.
	ErrMissingRequiredField = errors.New("missing required field")
	ErrForbiddenField       = errors.New("forbidden field")

	// ErrOutOfOrderDate means the effective date precedes the branch start.
	ErrOutOfOrderDate = errors.New("effective date out of order")

	// ErrDuplicateUniqueEmail means the return address mint retry limit was
	// exhausted.
	ErrDuplicateUniqueEmail = errors.New("duplicate unique email")

	// ErrIntegrityError means stored data violates an engine invariant, for
	// example an inbound recipient matching several unique addresses.
	ErrIntegrityError = errors.New("data integrity error")

	// ErrTransportError means outbound delivery was refused synchronously.
	ErrTransportError = errors.New("mail transport error")

	ErrNotFound = errors.New("not found")
)

func IllegalActionf(format string, args ...any) error {
	return errors.WithMessagef(ErrIllegalAction, format, args...)
}

func MissingRequiredField(action ActionType, field string) error {
	return errors.WithMessage(ErrMissingRequiredField, fmt.Sprintf("%s requires %s", action, field))
}

func ForbiddenField(action ActionType, field string) error {
	return errors.WithMessage(ErrForbiddenField, fmt.Sprintf("%s forbids %s", action, field))
}
