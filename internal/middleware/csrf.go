package middleware

import (
	"errors"
	"net/http"

	internal_errors "github.com/itchan-dev/tinychan/internal/errors"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/itchan-dev/tinychan/internal/session"
	"github.com/itchan-dev/tinychan/internal/validation"
)

const csrfFormField = "csrf_token"

// FormConfig holds configuration of the form guard in front of post submission
type FormConfig struct {
	CSRFEnabled    bool
	MaxRequestSize int64
	// OnError writes the response for a rejected request.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// ValidateCSRFToken parses the submitted form under the request size cap and,
// when enabled, checks its csrf_token against the session token.
func ValidateCSRFToken(config FormConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			if err := validation.ValidateAndParseForm(r, w, config.MaxRequestSize); err != nil {
				if !errors.Is(err, validation.ErrPayloadTooLarge) {
					logger.Log.Warn("failed to parse form", "component", "http", "path", r.URL.Path, "error", err)
				}
				config.OnError(w, r, validation.FormError(r, err, config.MaxRequestSize))
				return
			}

			if config.CSRFEnabled {
				var token string
				if sess := GetSessionFromContext(r); sess != nil {
					token = sess.CSRFToken
				}
				if !session.ValidateToken(token, r.FormValue(csrfFormField)) {
					logger.Log.Warn("CSRF token validation failed", "component", "http", "path", r.URL.Path)
					config.OnError(w, r, internal_errors.ErrCSRFMismatch)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
