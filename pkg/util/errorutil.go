package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API clients.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeDetailEditForbidden = "DETAIL_EDIT_FORBIDDEN"
	CodePersistenceFailure  = "PERSISTENCE_FAILURE"
	CodePartialBulkFailure  = "PARTIAL_BULK_FAILURE"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewUnauthenticated reports a missing or bad credential.
func NewUnauthenticated(message string) error {
	return NewDomainError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

// NewUnauthorized reports an actor whose role does not allow the request.
func NewUnauthorized(message string, details map[string]any) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusForbidden, details)
}

func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

func NewDetailEditForbidden(message string, details map[string]any) error {
	return NewDomainError(CodeDetailEditForbidden, message, http.StatusConflict, details)
}

// NewPersistenceFailure wraps a store error. The request may be retried
// as-is.
func NewPersistenceFailure(err error, details map[string]any) error {
	return &DomainError{
		Code:       CodePersistenceFailure,
		Message:    "ticket store unavailable, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    details,
		Err:        err,
	}
}

// NewPartialBulkFailure reports the ids of a bulk request that failed.
func NewPartialBulkFailure(failed map[string]string, succeeded int) error {
	failedDetails := make(map[string]any, len(failed))
	for id, reason := range failed {
		failedDetails[id] = reason
	}
	return NewDomainError(CodePartialBulkFailure,
		fmt.Sprintf("%d of %d tickets failed", len(failed), len(failed)+succeeded),
		http.StatusMultiStatus,
		map[string]any{"failed": failedDetails, "succeeded": succeeded})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
