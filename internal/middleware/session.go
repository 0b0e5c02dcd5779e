package middleware

import (
	"context"
	"net/http"

	"github.com/itchan-dev/tinychan/internal/domain"
	"github.com/itchan-dev/tinychan/internal/logger"
	"github.com/itchan-dev/tinychan/internal/session"
)

const SessionCookieName = "tinychan_session"

type sessionContextKey string

const sessionKey sessionContextKey = "session"

// SessionConfig holds session middleware configuration
type SessionConfig struct {
	SecureCookies bool // Use Secure flag on cookies (requires HTTPS)
	MaxAge        int  // seconds
}

// Sessions loads the visitor session from its cookie, starting a new one when
// the cookie is missing or the session has expired.
func Sessions(store *session.Store, config SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *domain.Session
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				sess, _ = store.Get(cookie.Value)
			}

			if sess == nil {
				var err error
				sess, err = store.Create()
				if err != nil {
					logger.Log.Error("failed to create session", "component", "http", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sess.Id,
					Path:     "/",
					HttpOnly: true,
					Secure:   config.SecureCookies,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   config.MaxAge,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext returns the session attached by Sessions, or nil.
func GetSessionFromContext(r *http.Request) *domain.Session {
	sess, _ := r.Context().Value(sessionKey).(*domain.Session)
	return sess
}

// GetCSRFTokenFromContext retrieves the session CSRF token for template rendering
func GetCSRFTokenFromContext(r *http.Request) string {
	if sess := GetSessionFromContext(r); sess != nil {
		return sess.CSRFToken
	}
	return ""
}
