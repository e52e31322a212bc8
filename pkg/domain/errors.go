package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. DomainError.Err always holds one of these so callers
// can branch with errors.Is.
var (
	ErrValidation          = errors.New("validation_error")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not_found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidState        = errors.New("invalid_state")
	ErrGateway             = errors.New("gateway_error")
	ErrCardDeclined        = errors.New("card_declined")
	ErrGatewayTransient    = errors.New("gateway_transient")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)

// DomainError is the error type returned by every core operation.
type DomainError struct {
	Err     error
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Is matches both the kind sentinel and, for gateway sub-kinds, ErrGateway.
func (e *DomainError) Is(target error) bool {
	if target == e.Err {
		return true
	}
	if target == ErrGateway && (e.Err == ErrCardDeclined || e.Err == ErrGatewayTransient) {
		return true
	}
	return false
}

// Unwrap exposes the underlying cause, if any.
func (e *DomainError) Unwrap() error { return e.cause }

// Kind returns the stable machine-readable kind string.
func (e *DomainError) Kind() string { return e.Err.Error() }

// NewValidationError reports malformed or out-of-range input.
func NewValidationError(format string, args ...interface{}) *DomainError {
	return &DomainError{Err: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports a collision with existing state.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewUnavailableDatesError is a conflict carrying the blocked calendar days.
func NewUnavailableDatesError(dates []string) *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Message: "requested dates are unavailable: " + strings.Join(dates, ", "),
		Details: map[string]interface{}{"unavailable_dates": dates},
	}
}

// NewNotFoundError reports an unknown entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewUnauthorizedError reports a principal acting on something it does not own.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Err: ErrUnauthorized, Message: message}
}

// NewInvalidStateError reports an illegal state-machine transition.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Details: map[string]interface{}{"from": from, "to": to},
	}
}

// NewGatewayError wraps a payment provider failure. Declined failures are the
// cardholder's bank refusing; everything else is treated as transient.
func NewGatewayError(op string, declined bool, cause error) *DomainError {
	kind := ErrGatewayTransient
	msg := fmt.Sprintf("payment gateway %s failed", op)
	if declined {
		kind = ErrCardDeclined
		msg = fmt.Sprintf("payment gateway %s declined", op)
	}
	return &DomainError{
		Err:     kind,
		Message: msg,
		Details: map[string]interface{}{"operation": op},
		cause:   cause,
	}
}

// NewInsufficientCreditsError reports a ledger debit that cannot be satisfied.
func NewInsufficientCreditsError(requested, available int64) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientCredits,
		Message: fmt.Sprintf("insufficient credits: requested %d, available %d", requested, available),
		Details: map[string]interface{}{"requested": requested, "available": available},
	}
}

// KindOf returns the stable kind string for any error, "internal_error" for
// errors that did not originate in the domain.
func KindOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind()
	}
	return "internal_error"
}
