package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/pure-golang/velocity-mailer/logger"
)

const panicBody = `{"error":"Internal server error"}`

// Recovery recovers panic and logs it on ERROR level. 500 with a JSON error body is returned
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			rawStack := strings.ReplaceAll(string(debug.Stack()), "\t", "")
			var stack []string
			for _, line := range strings.Split(rawStack, "\n") {
				if line != "" {
					stack = append(stack, line)
				}
			}

			logger.FromContext(r.Context()).
				With("err", err).
				With("stack", stack).
				Error("Panic recovered from handler")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(panicBody))
		}()

		next.ServeHTTP(w, r)
	})
}
