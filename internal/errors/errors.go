package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Field validation failures. Always returned wrapped in *ValidationError.
var (
	ErrEmptyMessage   = errors.New("message is required")
	ErrMessageTooLong = errors.New("message is too long")
	ErrMissingSubject = errors.New("subject is required for a new thread")
	ErrSubjectTooLong = errors.New("subject is too long")
	ErrUnknownBoard   = errors.New("unknown board")
)

var ErrParentNotFound = errors.New("parent thread does not exist")

// Upload failures. Always returned wrapped in *UploadError.
var (
	ErrUploadTransport = errors.New("file upload failed")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrContentMismatch = errors.New("file content does not match extension")
)

var (
	ErrCSRFMismatch = errors.New("invalid CSRF token")
	ErrRateLimited  = errors.New("you're posting too fast, wait a few seconds")
)

// Check if err is instance of T for custom error types
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

type ValidationError struct {
	Err error
}

func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation error: %s", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UploadError carries one of the upload sentinels plus a human readable detail
// (for example the rejected extension).
type UploadError struct {
	Err    error
	Detail string
}

func NewUploadError(err error, detail string) *UploadError {
	return &UploadError{Err: err, Detail: detail}
}

func (e *UploadError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *UploadError) Unwrap() error { return e.Err }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RegenerationError reports a failed static rebuild. The post that triggered it
// is already committed.
type RegenerationError struct {
	Board string
	Err   error
}

func (e *RegenerationError) Error() string {
	if e.Board == "" {
		return fmt.Sprintf("regenerate: %s", e.Err)
	}
	return fmt.Sprintf("regenerate board %s: %s", e.Board, e.Err)
}

func (e *RegenerationError) Unwrap() error { return e.Err }

// StatusCode maps an error from the post pipeline to an HTTP status.
func StatusCode(err error) int {
	var withCode *ErrorWithStatusCode
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &withCode):
		return withCode.StatusCode
	case errors.Is(err, ErrParentNotFound):
		return http.StatusNotFound
	case Is[*ValidationError](err):
		return http.StatusBadRequest
	case errors.Is(err, ErrCSRFMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrContentMismatch):
		return http.StatusUnsupportedMediaType
	case Is[*UploadError](err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the text shown to the poster. Storage, regeneration and
// unknown errors never leak internal detail.
func UserMessage(err error) string {
	var withCode *ErrorWithStatusCode
	var validation *ValidationError
	var upload *UploadError
	switch {
	case errors.As(err, &withCode):
		return withCode.Message
	case errors.As(err, &validation):
		return validation.Err.Error()
	case errors.As(err, &upload):
		if errors.Is(upload.Err, ErrUploadTransport) {
			return upload.Err.Error()
		}
		return upload.Error()
	case errors.Is(err, ErrParentNotFound), errors.Is(err, ErrCSRFMismatch), errors.Is(err, ErrRateLimited):
		return err.Error()
	default:
		return "Posting failed, please try again later."
	}
}
