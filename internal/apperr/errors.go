// Package apperr provides coded domain errors shared by services and handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeRangeTooLarge   Code = "RANGE_TOO_LARGE"

	// Booking outcomes
	CodeCapacityExceeded   Code = "CAPACITY_EXCEEDED"
	CodeSessionUnavailable Code = "SESSION_UNAVAILABLE"
	CodeDuplicateBooking   Code = "DUPLICATE_BOOKING"

	// Transition guards
	CodeAlreadyCancelled      Code = "ALREADY_CANCELLED"
	CodeNotCancellable        Code = "NOT_CANCELLABLE"
	CodeSessionNotCancellable Code = "SESSION_NOT_CANCELLABLE"
	CodeNotCheckInable        Code = "NOT_CHECKINABLE"
	CodeAlreadyCheckedIn      Code = "ALREADY_CHECKED_IN"
	CodeMembershipInvalid     Code = "MEMBERSHIP_INVALID"
	CodeInvalidTransition     Code = "INVALID_TRANSITION"
	CodeScheduleLocked        Code = "SCHEDULE_LOCKED"

	// Infrastructure
	CodeContention         Code = "CONTENTION"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// HTTPStatus maps a code to the response status used by the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument, CodeRangeTooLarge:
		return http.StatusBadRequest
	case CodeCapacityExceeded, CodeDuplicateBooking, CodeAlreadyCancelled,
		CodeAlreadyCheckedIn, CodeScheduleLocked:
		return http.StatusConflict
	case CodeSessionUnavailable, CodeNotCancellable, CodeSessionNotCancellable,
		CodeNotCheckInable, CodeMembershipInvalid, CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case CodeContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely repeat the operation.
func (c Code) Retryable() bool {
	return c == CodeContention
}

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons; matching is by code only.
var (
	ErrNotFound              = New(CodeNotFound, "not found")
	ErrInvalidArgument       = New(CodeInvalidArgument, "invalid argument")
	ErrRangeTooLarge         = New(CodeRangeTooLarge, "date range too large")
	ErrCapacityExceeded      = New(CodeCapacityExceeded, "session is fully booked")
	ErrSessionUnavailable    = New(CodeSessionUnavailable, "session is not available for booking")
	ErrDuplicateBooking      = New(CodeDuplicateBooking, "session already booked by this user")
	ErrAlreadyCancelled      = New(CodeAlreadyCancelled, "already cancelled")
	ErrNotCancellable        = New(CodeNotCancellable, "reservation cannot be cancelled")
	ErrSessionNotCancellable = New(CodeSessionNotCancellable, "session cannot be cancelled")
	ErrNotCheckInable        = New(CodeNotCheckInable, "reservation cannot be checked in")
	ErrAlreadyCheckedIn      = New(CodeAlreadyCheckedIn, "already checked in")
	ErrMembershipInvalid     = New(CodeMembershipInvalid, "membership is not valid")
	ErrInvalidTransition     = New(CodeInvalidTransition, "invalid status transition")
	ErrScheduleLocked        = New(CodeScheduleLocked, "schedule has generated sessions")
	ErrContention            = New(CodeContention, "resource busy, try again")
	ErrInvariantViolation    = New(CodeInvariantViolation, "invariant violation")
)

// CodeOf extracts the code of a domain error, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
