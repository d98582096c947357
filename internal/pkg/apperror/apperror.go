// Package apperror defines the error kinds surfaced by the marketplace
// services. Every kind has a stable machine-readable name which controllers
// send to clients together with a human message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindAlreadyPurchased   Kind = "already_purchased"
	KindPaymentFailed      Kind = "payment_failed"
	KindConflictingPayment Kind = "conflicting_payment"
	KindAlreadyEntitled    Kind = "already_entitled"
	KindDuplicateIdentity  Kind = "duplicate_identity"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindExpired            Kind = "credential_expired"
	KindMalformed          Kind = "credential_malformed"
	KindRevoked            Kind = "credential_revoked"
	KindInternal           Kind = "internal_error"
)

// Error carries a Kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so package level sentinels can be
// compared with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-safe message for err. Errors without a kind
// never leak their text.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}

// HTTPStatus maps a kind to the response status used by the JSON API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindAlreadyPurchased:
		return http.StatusBadRequest
	case KindUnauthorized, KindInvalidCredentials, KindExpired, KindMalformed, KindRevoked:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateIdentity, KindConflictingPayment, KindAlreadyEntitled:
		return http.StatusConflict
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// FromValidator turns validator/v10 field errors into a validation error
// naming the offending fields. Other errors are wrapped as validation errors
// with a generic message.
func FromValidator(err error) *Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Wrap(KindValidation, "Invalid input", err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if name == "" {
			name = "value"
		}
		parts = append(parts, fmt.Sprintf("%s is invalid (%s)", name, fe.Tag()))
	}
	return Wrap(KindValidation, strings.Join(parts, "; "), err)
}
