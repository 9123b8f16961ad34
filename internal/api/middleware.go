// Package api is the HTTP transport for the LIFF web app. Handlers are
// thin wrappers over the domain services; sentinel errors from the
// model package map onto HTTP status codes.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/auth"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/services"
)

type ctxKey int

const userCtxKey ctxKey = iota

// TokenVerifier validates a LINE ID token and returns its identity.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Identity, error)
}

// AuthMiddleware verifies the Bearer LINE ID token, resolves (or
// creates) the account and charges one API call against the plan
// quota. The user is stored on the request context for handlers.
func AuthMiddleware(verifier TokenVerifier, users *services.UserService, log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(bearerToken(r))
			if err != nil {
				respond.WriteUnauthorized(w, err.Error())
				return
			}

			user, err := users.EnsureUser(r.Context(), identity.LineUserID, &services.Profile{
				DisplayName: identity.DisplayName,
				PictureURL:  identity.PictureURL,
			})
			if err != nil {
				log.Error().Err(err).Msg("resolve user failed")
				respond.WriteInternalError(w, "could not resolve user")
				return
			}
			if err := users.RecordAPICall(r.Context(), user); err != nil {
				if errors.Is(err, model.ErrQuotaExceeded) {
					respond.WriteTooManyRequests(w, "plan quota exceeded")
					return
				}
				log.Error().Err(err).Msg("usage increment failed")
				respond.WriteInternalError(w, "could not record usage")
				return
			}

			ctx := context.WithValue(r.Context(), userCtxKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// userFrom returns the authenticated user placed by AuthMiddleware.
func userFrom(r *http.Request) *model.User {
	u, _ := r.Context().Value(userCtxKey).(*model.User)
	return u
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestLog logs one line per request with method, path, status and
// duration.
func RequestLog(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
