package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewValidationError(ErrEmptyMessage), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("submit: %w", NewValidationError(ErrSubjectTooLong)), http.StatusBadRequest},
		{"parent", fmt.Errorf("lookup: %w", ErrParentNotFound), http.StatusNotFound},
		{"csrf", ErrCSRFMismatch, http.StatusForbidden},
		{"rate limit", ErrRateLimited, http.StatusTooManyRequests},
		{"too large", NewUploadError(ErrFileTooLarge, ""), http.StatusRequestEntityTooLarge},
		{"unsupported", NewUploadError(ErrUnsupportedType, "exe"), http.StatusUnsupportedMediaType},
		{"mismatch", NewUploadError(ErrContentMismatch, ""), http.StatusUnsupportedMediaType},
		{"transport", NewUploadError(ErrUploadTransport, "code 3"), http.StatusBadRequest},
		{"storage", &StorageError{Op: "insert", Err: errors.New("boom")}, http.StatusInternalServerError},
		{"with code", &ErrorWithStatusCode{Message: "gone", StatusCode: http.StatusGone}, http.StatusGone},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusCode(tc.err))
		})
	}
}

func TestUserMessageHidesInternals(t *testing.T) {
	err := &StorageError{Op: "commit", Err: errors.New("connection refused to 10.0.0.3")}
	msg := UserMessage(err)
	assert.NotContains(t, msg, "10.0.0.3")

	regen := &RegenerationError{Board: "1", Err: errors.New("disk full")}
	assert.NotContains(t, UserMessage(regen), "disk full")

	assert.Equal(t, "message is required", UserMessage(NewValidationError(ErrEmptyMessage)))
	assert.Equal(t, "unsupported file type: exe", UserMessage(NewUploadError(ErrUnsupportedType, "exe")))
	assert.Equal(t, "file upload failed", UserMessage(NewUploadError(ErrUploadTransport, "open /tmp/multipart-1: EOF")))
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewUploadError(ErrContentMismatch, ""))
	assert.True(t, Is[*UploadError](err))
	assert.False(t, Is[*ValidationError](err))
	assert.True(t, errors.Is(err, ErrContentMismatch))
}
