// Package errors defines the failure taxonomy of the chat client. Every
// failure a controller can observe is a *StandardError carrying a Kind, so
// surfaces can tell a rejected file from an unreachable backend.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies where a failure originated.
type Kind string

const (
	// KindValidation is a local check that failed before any request.
	KindValidation Kind = "validation"
	// KindTransport means no HTTP response was obtained.
	KindTransport Kind = "transport"
	// KindProtocol means the backend answered outside the 2xx range.
	KindProtocol Kind = "protocol"
	// KindApplication means a 2xx response whose payload signals failure.
	KindApplication Kind = "application"
	// KindRefused means the call was not started, e.g. while busy.
	KindRefused Kind = "refused"
)

// StandardError represents a standard application error
type StandardError struct {
	Kind    Kind
	Type    string
	Message string
	Status  int
	Cause   error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same Type so that errors.Is works against the
// predefined values after WithCause or WithMessage copies them.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// WithCause adds a cause to the error
func (e *StandardError) WithCause(cause error) *StandardError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage replaces the human-readable message.
func (e *StandardError) WithMessage(format string, args ...interface{}) *StandardError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithStatus records the HTTP status code the backend answered with.
func (e *StandardError) WithStatus(code int) *StandardError {
	c := *e
	c.Status = code
	return &c
}

// KindOf returns the Kind of the first StandardError in err's chain, or an
// empty Kind if there is none.
func KindOf(err error) Kind {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Reason returns the message a user should see for err. For a StandardError
// it is the top-level message without the wrapped cause.
func Reason(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Is and As are re-exported so callers need a single errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Predefined error types for common scenarios

// ErrUnsupportedFileType rejects uploads with an unaccepted extension.
var ErrUnsupportedFileType = &StandardError{
	Kind:    KindValidation,
	Type:    "UNSUPPORTED_FILE_TYPE",
	Message: "unsupported file type",
}

// ErrFileTooLarge rejects uploads above the size limit.
var ErrFileTooLarge = &StandardError{
	Kind:    KindValidation,
	Type:    "FILE_TOO_LARGE",
	Message: "file too large",
}

// ErrEmptyQuestion is returned when a question is blank after trimming.
var ErrEmptyQuestion = &StandardError{
	Kind:    KindRefused,
	Type:    "EMPTY_QUESTION",
	Message: "question is empty",
}

// ErrBusy is returned when a request of the same kind is still in flight.
var ErrBusy = &StandardError{
	Kind:    KindRefused,
	Type:    "BUSY",
	Message: "a request is already in flight",
}

// ErrTransport indicates the backend could not be reached.
var ErrTransport = &StandardError{
	Kind:    KindTransport,
	Type:    "TRANSPORT",
	Message: "failed to reach backend",
}

// ErrBadStatus indicates a non-2xx reply.
var ErrBadStatus = &StandardError{
	Kind:    KindProtocol,
	Type:    "BAD_STATUS",
	Message: "backend returned an error status",
}

// ErrMalformedResponse indicates a 2xx reply that could not be decoded.
var ErrMalformedResponse = &StandardError{
	Kind:    KindApplication,
	Type:    "MALFORMED_RESPONSE",
	Message: "malformed response from backend",
}

// ErrMissingAnswer indicates a query reply without an answer field.
var ErrMissingAnswer = &StandardError{
	Kind:    KindApplication,
	Type:    "MISSING_ANSWER",
	Message: "response did not contain an answer",
}

// ErrUploadRejected indicates the backend answered with a non-success status.
var ErrUploadRejected = &StandardError{
	Kind:    KindApplication,
	Type:    "UPLOAD_REJECTED",
	Message: "Unknown error",
}
