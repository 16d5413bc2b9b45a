package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/classgate"
)

// Authenticator resolves the caller of a request. *classgate.Engine
// satisfies it.
type Authenticator interface {
	Authenticate(r *http.Request) (classgate.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (classgate.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(classgate.Identity)
	return id, ok
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id classgate.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects unauthenticated requests with 401 and the JSON envelope
// used by the API.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeUnauthorized(w)
				return
			}

			id, err := auth.Authenticate(r)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      false,
		"message": classgate.PublicMessage(classgate.ErrUnauthenticated),
	})
}
