package middleware

import (
	"net/http"
)

// MaxBodySize is the default maximum request body size (64KB)
const MaxBodySize = 64 << 10

// LimitBody limits the size of request bodies to max bytes
func LimitBody(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = MaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
