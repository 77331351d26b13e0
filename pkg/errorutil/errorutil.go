package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes returned to callers.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeRoleLimit        = "ROLE_LIMIT_REACHED"
	CodeInternal         = "INTERNAL_ERROR"
)

var (
	// ErrRoleLimitReached is returned by conditional writes when a rank is full.
	ErrRoleLimitReached = errors.New("role limit reached")
	// ErrStaffExists is returned when a guild already has a record for the user.
	ErrStaffExists = errors.New("staff record already exists")
	// ErrMissingContextField marks a validation request missing a required identifier.
	ErrMissingContextField = errors.New("validation context missing required field")
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
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
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

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewForbiddenWithBypass reports an authority failure and whether the caller could override it.
func NewForbiddenWithBypass(message string, bypassAvailable bool, bypassType string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, map[string]any{
		"bypass_available": bypassAvailable,
		"bypass_type":      bypassType,
	})
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewRoleLimit(message string, details map[string]any) error {
	return NewDomainError(CodeRoleLimit, message, http.StatusConflict, details)
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
		return NewDomainError(CodeNotFound, "resource not found", http.StatusNotFound, map[string]any{})
	}
	if errors.Is(err, ErrRoleLimitReached) {
		return NewDomainError(CodeRoleLimit, err.Error(), http.StatusConflict, nil)
	}
	if errors.Is(err, ErrStaffExists) {
		return NewDomainError(CodeConflict, err.Error(), http.StatusConflict, nil)
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError is ToDomainError for error-typed returns; nil stays nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsNotFound reports whether err represents a missing row or NOT_FOUND domain error.
func IsNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == CodeNotFound
}
