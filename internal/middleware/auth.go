package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/vwlab/vwharness/pkg/errors"
)

// TokenAuth checks a bearer token against a bcrypt hash
type TokenAuth struct {
	hash []byte
}

// NewTokenAuth creates the middleware. An empty hash disables authentication.
func NewTokenAuth(hash string) *TokenAuth {
	if hash == "" {
		return &TokenAuth{}
	}
	return &TokenAuth{hash: []byte(hash)}
}

// Enabled reports whether a token is required
func (a *TokenAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Authenticate requires Authorization: Bearer <token> when enabled
func (a *TokenAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, apperrors.NewWithDetail(
				apperrors.ErrCodeUnauthorized,
				"Missing bearer token",
				"Authorization header must be 'Bearer <token>'",
				http.StatusUnauthorized,
			))
			return
		}

		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(strings.TrimSpace(token))); err != nil {
			writeError(w, apperrors.ErrUnauthorized)
			return
		}

		StripCredentialHeaders(r.Header)
		next.ServeHTTP(w, r)
	})
}
