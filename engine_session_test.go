package classgate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticateSources(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	session := h.register(t, "Alice", "alice@x.com", "secret1", RoleStudent)

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: AccessCookieName, Value: session.AccessToken})

	bearerReq := httptest.NewRequest(http.MethodGet, "/", nil)
	bearerReq.Header.Set("Authorization", "Bearer "+session.AccessToken)

	// The cookie wins over a bogus header.
	bothReq := httptest.NewRequest(http.MethodGet, "/", nil)
	bothReq.AddCookie(&http.Cookie{Name: AccessCookieName, Value: session.AccessToken})
	bothReq.Header.Set("Authorization", "Bearer garbage")

	for name, r := range map[string]*http.Request{"cookie": cookieReq, "bearer": bearerReq, "both": bothReq} {
		id, err := h.engine.Authenticate(r)
		if err != nil || id.UserID != session.User.ID {
			t.Fatalf("%s: id=%+v err=%v", name, id, err)
		}
	}
}

func TestAuthenticateFailures(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	session := h.register(t, "Alice", "alice@x.com", "secret1", RoleStudent)

	none := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := h.engine.Authenticate(none)
	wantErr(t, err, ErrUnauthenticated)

	refreshAsAccess := httptest.NewRequest(http.MethodGet, "/", nil)
	refreshAsAccess.Header.Set("Authorization", "Bearer "+session.RefreshToken)
	_, err = h.engine.Authenticate(refreshAsAccess)
	wantErr(t, err, ErrUnauthenticated)

	basic := httptest.NewRequest(http.MethodGet, "/", nil)
	basic.Header.Set("Authorization", "Basic "+session.AccessToken)
	_, err = h.engine.Authenticate(basic)
	wantErr(t, err, ErrUnauthenticated)

	h.clock.Advance(h.engine.AccessTTL() + time.Second)
	_, err = h.engine.AuthenticateToken(context.Background(), session.AccessToken)
	wantErr(t, err, ErrUnauthenticated)

	if got := h.engine.MetricsSnapshot().Counters[MetricAuthenticateFailure]; got != 4 {
		t.Fatalf("expected 4 failures, got %d", got)
	}
}

func TestAuthenticateRecordsLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	h := newHarness(t, cfg, nil)

	_, _ = h.engine.AuthenticateToken(context.Background(), "garbage")

	var total uint64
	for _, n := range h.engine.MetricsSnapshot().Histograms[MetricAuthenticateLatency] {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}
