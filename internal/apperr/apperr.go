// Package apperr defines the classified error type shared by all request
// layers.
//
// An Error carries a classification code, a message that is always safe to
// return to a caller, and an optional wrapped cause. The cause chain is for
// server-side logs only — it is never serialized into a response. Lower
// layers (storage, service) either return an already-classified Error or a
// plain wrapped error; the HTTP layer translates the classification into a
// status code and reclassifies anything unrecognized as internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for wire translation.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodePaymentRequired Code = "PAYMENT_REQUIRED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps a classification code to its response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates a classified error with a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a classified error that records cause for diagnostics.
// The cause is reachable via errors.Unwrap but is never shown to callers.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Invalid reports a malformed or out-of-range input, naming the field.
func Invalid(field, problem string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("%s: %s", field, problem)}
}

// NotFound reports a single-record fetch miss.
func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " not found"}
}

// PaymentRequired reports a payment-rule failure.
func PaymentRequired(message string) *Error {
	return &Error{Code: CodePaymentRequired, Message: message}
}

// Conflict reports a state conflict with an existing record.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Internal wraps a failure whose cause must not be exposed. The message
// shown to callers is generic; cause is retained for logging only.
func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf returns the classification of err, or CodeInternal when err carries
// none. This is the process-wide fallback: an unclassified error reaching
// the wire is always reported as internal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message for err. Unclassified errors get
// a generic message so implementation detail never leaks.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

// Is supports errors.Is matching on code: apperr.New(code, "") acts as a
// match target for any Error with the same code.
func (e *Error) Is(target error) bool {
	var ae *Error
	if !errors.As(target, &ae) {
		return false
	}
	return e.Code == ae.Code
}
