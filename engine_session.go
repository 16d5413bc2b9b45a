package classgate

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	// AccessCookieName and RefreshCookieName are the cookies carrying the
	// session pair.
	AccessCookieName  = "authToken"
	RefreshCookieName = "refreshToken"
)

// Authenticate resolves the caller of r from the access token in the
// authToken cookie, falling back to an Authorization bearer header. Every
// failure is ErrUnauthenticated.
func (e *Engine) Authenticate(r *http.Request) (Identity, error) {
	if r == nil {
		return Identity{}, ErrUnauthenticated
	}
	return e.AuthenticateToken(r.Context(), AccessTokenFromRequest(r))
}

// AuthenticateToken validates an access token without touching any store.
func (e *Engine) AuthenticateToken(ctx context.Context, token string) (Identity, error) {
	if e == nil {
		return Identity{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	if token == "" {
		e.metricInc(MetricAuthenticateFailure)
		return Identity{}, ErrUnauthenticated
	}

	userID, err := e.tokens.VerifyAccess(token)
	if err != nil || userID == "" {
		e.metricInc(MetricAuthenticateFailure)
		return Identity{}, ErrUnauthenticated
	}

	e.metricInc(MetricAuthenticateSuccess)
	return Identity{UserID: userID}, nil
}

// AccessTokenFromRequest returns the access token presented with r, or "".
func AccessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
