package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrDateUnavailable         = errors.New("date unavailable")
	ErrNotConfigured           = errors.New("case type not configured")
	ErrInvalidSlot             = errors.New("invalid time slot")
	ErrSlotFull                = errors.New("slot is full")
	ErrDuplicateID             = errors.New("duplicate appointment id")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidSlotDefinition   = errors.New("invalid slot definition")
	ErrValidation              = errors.New("validation failed")
)

type PolicyKind string

const (
	KindDateUnavailable PolicyKind = "date_unavailable"
	KindNotConfigured   PolicyKind = "not_configured"
	KindInvalidSlot     PolicyKind = "invalid_slot"
	KindSlotFull        PolicyKind = "slot_full"
)

// PolicyError is an expected booking outcome: the request was well formed but the clinic
// rules refuse it. It unwraps to the matching sentinel so errors.Is keeps working.
type PolicyError struct {
	Kind     PolicyKind
	Reason   string
	Date     Date
	CaseType CaseType
	TimeSlot string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	switch e.Kind {
	case KindDateUnavailable:
		return ErrDateUnavailable
	case KindNotConfigured:
		return ErrNotConfigured
	case KindInvalidSlot:
		return ErrInvalidSlot
	case KindSlotFull:
		return ErrSlotFull
	}
	return nil
}

// AsPolicyError returns the *PolicyError in err's chain, if any.
func AsPolicyError(err error) (*PolicyError, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ValidationError lists offending fields of a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
