package middleware

import (
	"net/http"
	"strings"
)

const redactedValue = "[REDACTED]"

var redactHeaderKeys = []string{
	"Authorization",
	"Cookie",
	"Set-Cookie",
	"X-API-Key",
}

var stripCredentialHeaderKeys = []string{
	"Authorization",
	"X-API-Key",
}

func isHeaderInList(key string, keys []string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, k := range keys {
		if strings.ToLower(k) == lower {
			return true
		}
	}
	return false
}

func redactHeaderValue(key, value string) string {
	if strings.EqualFold(key, "Authorization") {
		parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
		if len(parts) == 2 && parts[0] != "" {
			return parts[0] + " " + redactedValue
		}
	}
	return redactedValue
}

// RedactHeaders returns a copy of h with sensitive values replaced by a constant.
// Use this for safe logging/telemetry.
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}

	out := make(http.Header, len(h))
	for key, values := range h {
		if !isHeaderInList(key, redactHeaderKeys) {
			copied := make([]string, len(values))
			copy(copied, values)
			out[key] = copied
			continue
		}

		redacted := make([]string, len(values))
		for i := range values {
			redacted[i] = redactHeaderValue(key, values[i])
		}
		out[key] = redacted
	}
	return out
}

// StripCredentialHeaders removes credentials from h in-place.
// Call it after authentication so they cannot leak via logs.
func StripCredentialHeaders(h http.Header) {
	if h == nil {
		return
	}
	for _, key := range stripCredentialHeaderKeys {
		h.Del(key)
	}
}
