package classgate

import (
	"context"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	registered := h.register(t, "Alice", "alice@x.com", "secret1", RoleTeacher)

	session, err := h.engine.Login(context.Background(), " ALICE@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.User.ID != registered.User.ID {
		t.Fatalf("expected user %s, got %s", registered.User.ID, session.User.ID)
	}
	if _, err := h.engine.AuthenticateToken(context.Background(), session.AccessToken); err != nil {
		t.Fatalf("login access token invalid: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.register(t, "Alice", "alice@x.com", "secret1", RoleTeacher)
	ctx := context.Background()

	_, wrongPassword := h.engine.Login(ctx, "alice@x.com", "secret2")
	_, unknownEmail := h.engine.Login(ctx, "nobody@x.com", "secret1")

	wantErr(t, wrongPassword, ErrInvalidCredentials)
	wantErr(t, unknownEmail, ErrInvalidCredentials)
	if PublicMessage(wrongPassword) != PublicMessage(unknownEmail) {
		t.Fatal("public messages must match")
	}

	_, err := h.engine.Login(ctx, "", "secret1")
	wantErr(t, err, ErrMissingFields)
}

func TestLoginThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.MaxLoginAttempts = 3
	h := newHarness(t, cfg, nil)
	h.register(t, "Alice", "alice@x.com", "secret1", RoleTeacher)
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	for i := 0; i < 3; i++ {
		_, err := h.engine.Login(ctx, "alice@x.com", "wrong-password")
		wantErr(t, err, ErrInvalidCredentials)
	}

	_, err := h.engine.Login(ctx, "alice@x.com", "secret1")
	wantErr(t, err, ErrRateLimited)
	if got := h.engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
		t.Fatalf("expected rate limited metric, got %d", got)
	}

	h.mr.FastForward(cfg.Throttle.LoginCooldown + time.Second)
	if _, err := h.engine.Login(ctx, "alice@x.com", "secret1"); err != nil {
		t.Fatalf("login after cooldown: %v", err)
	}
}

func TestLoginSuccessResetsThrottle(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.MaxLoginAttempts = 3
	h := newHarness(t, cfg, nil)
	h.register(t, "Alice", "alice@x.com", "secret1", RoleTeacher)
	ctx := context.Background()

	for round := 0; round < 3; round++ {
		for i := 0; i < 2; i++ {
			_, _ = h.engine.Login(ctx, "alice@x.com", "wrong-password")
		}
		if _, err := h.engine.Login(ctx, "alice@x.com", "secret1"); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	registered := h.register(t, "Alice", "alice@x.com", "secret1", RoleStudent)

	h.clock.Advance(time.Hour)

	session, err := h.engine.Refresh(context.Background(), registered.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if session.User.ID != registered.User.ID {
		t.Fatal("refresh returned a different user")
	}
	if !session.AccessExpiresAt.After(registered.AccessExpiresAt) {
		t.Fatal("expected a later access expiry")
	}
}

func TestRefreshRejections(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	registered := h.register(t, "Alice", "alice@x.com", "secret1", RoleStudent)
	ctx := context.Background()

	_, err := h.engine.Refresh(ctx, registered.AccessToken)
	wantErr(t, err, ErrUnauthenticated)

	_, err = h.engine.Refresh(ctx, "")
	wantErr(t, err, ErrUnauthenticated)

	h.clock.Advance(h.engine.RefreshTTL() + time.Minute)
	_, err = h.engine.Refresh(ctx, registered.RefreshToken)
	wantErr(t, err, ErrUnauthenticated)

	if got := h.engine.MetricsSnapshot().Counters[MetricRefreshFailure]; got != 3 {
		t.Fatalf("expected 3 refresh failures, got %d", got)
	}
}

func TestUserAndProfileStats(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	teacher := h.register(t, "Tess", "tess@x.com", "secret1", RoleTeacher)
	student := h.register(t, "Bob", "bob@x.com", "secret1", RoleStudent)
	ctx := context.Background()

	h.classrooms.rooms["c1"] = Classroom{ID: "c1", Name: "Algebra", OwnerID: teacher.User.ID}
	h.classrooms.rooms["c2"] = Classroom{ID: "c2", Name: "Biology", OwnerID: teacher.User.ID}
	_, _ = h.memberships.AddMember(ctx, "c1", "bob@x.com")

	user, err := h.engine.User(ctx, student.User.ID)
	if err != nil || user.Email != "bob@x.com" {
		t.Fatalf("User: %+v %v", user, err)
	}
	_, err = h.engine.User(ctx, "missing")
	wantErr(t, err, ErrUserNotFound)

	stats, err := h.engine.ProfileStats(ctx, teacher.User.ID)
	if err != nil || stats.TotalClasses != 2 || stats.Role != RoleTeacher {
		t.Fatalf("teacher stats: %+v %v", stats, err)
	}
	stats, err = h.engine.ProfileStats(ctx, student.User.ID)
	if err != nil || stats.JoinedClasses != 1 || stats.TotalClasses != 0 {
		t.Fatalf("student stats: %+v %v", stats, err)
	}
}
