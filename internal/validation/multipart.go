package validation

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
)

// ErrPayloadTooLarge is returned when the request body exceeds size limits
var ErrPayloadTooLarge = errors.New("payload too large")

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

// ValidateAndParseForm caps the request body at maxSize and parses it as a
// multipart form, falling back to a url-encoded form when the request carries
// no file field at all.
//
// When the cap is hit the server stops reading and closes the connection.
func ValidateAndParseForm(r *http.Request, w http.ResponseWriter, maxSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		// multipart may flatten the reader error into text
		if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
			return fmt.Errorf("%w: failed to parse form", ErrPayloadTooLarge)
		}
		return fmt.Errorf("failed to parse form: %w", err)
	}
	return nil
}

// FormError maps a ValidateAndParseForm failure to the error shown to the
// poster. An oversized body is a too large file, a broken multipart body is a
// failed upload, anything else is a bad request.
func FormError(r *http.Request, err error, maxSize int64) error {
	if errors.Is(err, ErrPayloadTooLarge) {
		return internal_errors.NewUploadError(internal_errors.ErrFileTooLarge,
			fmt.Sprintf("request exceeds %.1f MB", FormatSizeMB(maxSize)))
	}
	if isMultipart(r) {
		return internal_errors.NewUploadError(internal_errors.ErrUploadTransport, "")
	}
	return &internal_errors.ErrorWithStatusCode{Message: "Invalid form data", StatusCode: http.StatusBadRequest}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// CalculateMaxRequestSize returns the maximum request size including overhead buffer.
// It adds a buffer (typically 1 MiB) for form fields and multipart overhead.
func CalculateMaxRequestSize(maxAttachmentSize int64, bufferSize int64) int64 {
	return maxAttachmentSize + bufferSize
}

// FormatSizeMB converts bytes to megabytes for user-friendly error messages.
func FormatSizeMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}
