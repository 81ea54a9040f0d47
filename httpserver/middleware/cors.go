package middleware

import (
	"net/http"
	"strings"
)

const AllowedHeaders = "Content-Type, X-API-KEY"

// CORS sets permissive cross-origin headers on every response and answers
// preflight OPTIONS requests with an empty 200.
func CORS(methods ...string) func(http.Handler) http.Handler {
	allowed := strings.Join(append(methods, http.MethodOptions), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", allowed)
			h.Set("Access-Control-Allow-Headers", AllowedHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
