package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors for the scheduling domain. Handlers map these onto HTTP
// status codes; everything else surfaces as a 500.
var (
	ErrMasterNotFound      = errors.New("master not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrForbidden           = errors.New("forbidden")
	ErrBusy                = errors.New("calendar busy, retry")
)

// ValidationError reports malformed or out-of-range request input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTransitionError reports a lifecycle move the state machine forbids.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}
