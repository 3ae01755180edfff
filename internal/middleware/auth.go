// Package middleware provides HTTP middleware for the operator API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken rejects requests whose Authorization header does not carry
// token. Websocket clients may pass it as the access_token query parameter.
// An empty token disables the check.
func BearerToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("access_token")
			if auth := r.Header.Get("Authorization"); auth != "" {
				scheme, value, ok := strings.Cut(auth, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") {
					unauthorized(w)
					return
				}
				got = strings.TrimSpace(value)
			}

			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="slotwatch"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
