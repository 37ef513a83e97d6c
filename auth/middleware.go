package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/caolo/simcore/storage"
)

type contextKey int

const userContextKey contextKey = iota

// Middleware validates the bearer token on every request using v,
// attaching the resulting storage.UserId to the request context when
// present. A missing token is not itself rejected here: routes that
// need one call RequireUser after this middleware has run, so read
// routes stay reachable anonymously while mutating routes enforce a
// user.
func Middleware(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			claims, err := v.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, storage.UserId(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated caller's UserId, if the
// request carried a valid bearer token.
func UserFromContext(ctx context.Context) (storage.UserId, bool) {
	id, ok := ctx.Value(userContextKey).(storage.UserId)
	return id, ok
}

// RequireUser wraps next, rejecting requests Middleware did not attach
// a user to. Mutating routes (compile, commit, register, user update) chain
// this after Middleware; read routes (schema, terrain, world) do not.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
