package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrUnsupportedType   = errors.New("unsupported datasource type")
	ErrMultipleStatement = errors.New("multiple SQL statements not allowed; submit one statement per query")
)

// MissingParameterError reports a blank required credential field.
// It is raised before any network call is attempted.
type MissingParameterError struct {
	Field string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required connection parameter: %s", e.Field)
}

// ConnectionError wraps a transport, authentication or session-setup failure.
// The session that produced it is back in the Closed state.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	if e.Cause == nil {
		return "connection failed"
	}
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ProbeQueryError is returned by connection tests when the probe statement fails.
type ProbeQueryError struct {
	Message string
	Cause   error
}

func (e *ProbeQueryError) Error() string {
	return fmt.Sprintf("probe query failed: %s", e.Message)
}

func (e *ProbeQueryError) Unwrap() error { return e.Cause }

// TemplateBindingError means a template placeholder could not be evaluated
// against the supplied context. It indicates a programming defect.
type TemplateBindingError struct {
	Template    string
	Placeholder int
	Cause       error
}

func (e *TemplateBindingError) Error() string {
	return fmt.Sprintf("template %q: placeholder %d: %v", e.Template, e.Placeholder, e.Cause)
}

func (e *TemplateBindingError) Unwrap() error { return e.Cause }

// NotFoundError names a warehouse object that could not be located.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q does not exist or is not authorized", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// QueryError carries the single-line message of a failed in-session query.
type QueryError struct {
	Message string
	Cause   error
}

func (e *QueryError) Error() string { return e.Message }

func (e *QueryError) Unwrap() error { return e.Cause }

// IsConnectionError reports whether err (or anything it wraps) is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
