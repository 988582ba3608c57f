package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an application error
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindExternalService   Kind = "external_service"
	KindInvalidTransition Kind = "invalid_transition"
	KindInternal          Kind = "internal"
)

// Issue is one field-level validation problem
type Issue struct {
	Code    string   `json:"code"`
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// Error is an application error carrying a Kind and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Issues  []Issue
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input. Details lists each problem.
func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// InvalidInput reports a schema failure with one Issue per offending field.
func InvalidInput(issues []Issue) *Error {
	details := make([]string, len(issues))
	for i, issue := range issues {
		details[i] = issue.Message
	}
	return &Error{Kind: KindValidation, Message: "Invalid request data", Details: details, Issues: issues}
}

// NotFound reports an id-keyed lookup miss.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Unauthorized reports a missing or invalid identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden reports an authenticated caller lacking ownership or role.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// ExternalService wraps a failure of a third-party dependency.
func ExternalService(service string, err error) *Error {
	return &Error{Kind: KindExternalService, Message: service + " request failed", Err: err}
}

// InvalidTransition reports a state machine violation.
func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot transition campaign from %s to %s", from, to),
	}
}

// Internal wraps an unexpected failure. Its message is never shown to callers.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
