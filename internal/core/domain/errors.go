package domain

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a resource, user or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating an entity whose key already exists.
	ErrConflict = errors.New("already exists")
	// ErrUnauthenticated covers missing or unusable credentials.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned for sessions past their absolute or idle deadline.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidCode is returned for identity codes that match no role pattern.
	ErrInvalidCode = errors.New("invalid identity code")
	// ErrRoleMismatch is returned when the declared user type differs from the stored one.
	ErrRoleMismatch = errors.New("declared user type does not match identity")
	// ErrAccountInactive is returned for users whose account is disabled.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrRateLimited is returned when an identity or client exceeded its attempt budget.
	ErrRateLimited = errors.New("too many attempts")
	// ErrStorage marks failures of a backing store.
	ErrStorage = errors.New("storage failure")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// NewValidationError is a shorthand for a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{FieldErrors: map[string]string{field: message}}
}

// AuthorizationError is an entitlement denial. Reason is user-facing.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "forbidden: " + e.Reason
}

// HTTPStatus maps an error to the response code of the REST surface.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var vErr *ValidationError
	var aErr *AuthorizationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.As(err, &aErr):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrRoleMismatch),
		errors.Is(err, ErrAccountInactive):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// ErrorKind maps errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	var aErr *AuthorizationError
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &aErr):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return "unexpected"
}
