// Package recovery converts handler panics into JSON 500 responses so a
// single bad webhook or API request cannot take the service down.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
)

// Middleware returns a router middleware that recovers panics from
// downstream handlers, logs the request and stack through log, and
// replies with the standard error envelope.
func Middleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("remote", r.RemoteAddr).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")

					respond.WriteInternalError(w, "")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
