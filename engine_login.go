package classgate

import (
	"context"
	"errors"

	"github.com/MrEthical07/classgate/internal/rate"
	"github.com/MrEthical07/classgate/password"
)

// Login checks email and password and returns a fresh session. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, pw string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return nil, ErrMissingFields
	}
	ip := ClientIPFromContext(ctx)

	if err := e.loginLimiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", email)
			return nil, ErrRateLimited
		}
		return nil, e.dependencyError(ctx, "login throttle", err)
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	user, err := e.users.FindByEmail(storeCtx, email)
	cancel()
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, e.dependencyError(ctx, "find user by email", err)
		}
		_, _ = e.passwords.Verify(pw, e.dummyHash)
		return nil, e.loginFailed(ctx, email, ip)
	}

	ok, err := e.passwords.Verify(pw, user.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrPasswordTooLong) {
		return nil, e.dependencyError(ctx, "verify password", err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, ip)
	}

	if err := e.loginLimiter.ResetLogin(ctx, email, ip); err != nil {
		e.logger.WarnContext(ctx, "reset login throttle", "error", err)
	}

	pair, err := e.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, e.dependencyError(ctx, "issue session", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, user.ID, email, nil, nil)
	return &Session{User: user, Pair: pair}, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLogin, false, "", email, ErrInvalidCredentials, nil)

	if err := e.loginLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		e.logger.WarnContext(ctx, "count failed login", "error", err)
	}
	return ErrInvalidCredentials
}

// Refresh exchanges a valid refresh token for a new session pair. The
// user is re-read so deleted accounts cannot refresh.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	userID, err := e.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefresh, false, "", "", ErrUnauthenticated, nil)
		return nil, ErrUnauthenticated
	}

	user, err := e.User(ctx, userID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventRefresh, false, userID, "", ErrUnauthenticated, nil)
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	pair, err := e.tokens.IssuePair(user.ID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, e.dependencyError(ctx, "issue session", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefresh, true, user.ID, "", nil, nil)
	return &Session{User: user, Pair: pair}, nil
}

// User returns the account for userID.
func (e *Engine) User(ctx context.Context, userID string) (User, error) {
	if e == nil {
		return User{}, ErrEngineNotReady
	}
	if userID == "" {
		return User{}, ErrUserNotFound
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	defer cancel()

	user, err := e.users.FindByID(storeCtx, userID)
	if err != nil {
		return User{}, e.dependencyError(ctx, "find user by id", err)
	}
	return user, nil
}

// ProfileStats counts the classrooms a teacher owns or a student has
// joined.
func (e *Engine) ProfileStats(ctx context.Context, userID string) (ProfileStats, error) {
	user, err := e.User(ctx, userID)
	if err != nil {
		return ProfileStats{}, err
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	defer cancel()

	stats := ProfileStats{Role: user.Role}
	switch user.Role {
	case RoleTeacher:
		stats.TotalClasses, err = e.classrooms.CountOwned(storeCtx, user.ID)
	default:
		stats.JoinedClasses, err = e.memberships.CountJoined(storeCtx, user.Email)
	}
	if err != nil {
		return ProfileStats{}, e.dependencyError(ctx, "profile stats", err)
	}
	return stats, nil
}
