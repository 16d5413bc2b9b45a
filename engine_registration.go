package classgate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/classgate/passcode"
	"github.com/MrEthical07/classgate/password"
	"github.com/google/uuid"
)

// RequestRegistrationCode issues a verification code for email and sends it
// through the notifier. Any earlier code for the same email stops working.
func (e *Engine) RequestRegistrationCode(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return ErrMissingFields
	}
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	// Requests for registered addresses count against the throttle too.
	subject := registrationSubject(email)
	if err := e.throttleIssue(ctx, "register", subject); err != nil {
		return err
	}

	if err := e.ensureUnregistered(ctx, email); err != nil {
		return err
	}

	code, err := e.passcodes.Issue(ctx, subject)
	if err != nil {
		return e.dependencyError(ctx, "issue registration code", err)
	}
	e.metricInc(MetricPasscodeIssued)
	e.emitAudit(ctx, auditEventPasscodeIssued, true, "", email, nil, func() map[string]string {
		return map[string]string{"flow": "register"}
	})

	return e.deliver(ctx, "register", email, registrationMessage(code, e.config.Passcode.CodeTTL), code)
}

// CompleteRegistration redeems the verification code, creates the account
// and returns a fresh session. Input is fully validated before any store is
// touched.
func (e *Engine) CompleteRegistration(ctx context.Context, in RegistrationInput) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	session, err := e.completeRegistration(ctx, in)
	if err != nil {
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistration, false, "", normalizeEmail(in.Email), err, nil)
		return nil, err
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistration, true, session.User.ID, session.User.Email, nil, func() map[string]string {
		return map[string]string{"role": string(session.User.Role)}
	})
	return session, nil
}

func (e *Engine) completeRegistration(ctx context.Context, in RegistrationInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	role := Role(strings.ToLower(strings.TrimSpace(string(in.Role))))
	code := strings.TrimSpace(in.Code)

	if name == "" || email == "" || in.Password == "" || code == "" || role == "" {
		return nil, ErrMissingFields
	}
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := e.passwords.Check(in.Password); err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		return nil, e.dependencyError(ctx, "password policy", err)
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := e.ensureUnregistered(ctx, email); err != nil {
		return nil, err
	}

	if err := e.redeem(ctx, registrationSubject(email), code, ErrNoCodeRequested, ErrCodeInvalid); err != nil {
		return nil, err
	}

	hash, err := e.passwords.Hash(in.Password)
	if err != nil {
		return nil, e.dependencyError(ctx, "hash password", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    e.now().UTC(),
	}

	storeCtx, cancel := e.withStoreTimeout(ctx)
	err = e.users.Create(storeCtx, user)
	cancel()
	if err != nil {
		return nil, e.dependencyError(ctx, "create user", err)
	}

	if err := e.requestLimiter.Reset(ctx, registrationSubject(email)); err != nil {
		e.logger.WarnContext(ctx, "reset passcode throttle", "error", err)
	}

	pair, err := e.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, e.dependencyError(ctx, "issue session", err)
	}

	return &Session{User: user, Pair: pair}, nil
}

func (e *Engine) ensureUnregistered(ctx context.Context, email string) error {
	storeCtx, cancel := e.withStoreTimeout(ctx)
	defer cancel()

	_, err := e.users.FindByEmail(storeCtx, email)
	switch {
	case err == nil:
		return ErrAlreadyRegistered
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return e.dependencyError(ctx, "find user by email", err)
	}
}

// redeem verifies code for subject. A missing record maps to noCodeErr and
// every other failed verification to invalidErr.
func (e *Engine) redeem(ctx context.Context, subject, code string, noCodeErr, invalidErr error) error {
	result, err := e.passcodes.Verify(ctx, subject, code)
	if err != nil {
		return e.dependencyError(ctx, "verify passcode", err)
	}

	switch result {
	case passcode.ResultVerified:
		e.metricInc(MetricPasscodeVerified)
		return nil
	case passcode.ResultNoActiveCode:
		e.metricInc(MetricPasscodeNoActiveCode)
		return noCodeErr
	case passcode.ResultExpired:
		e.metricInc(MetricPasscodeExpired)
	case passcode.ResultAttemptsExceeded:
		e.metricInc(MetricPasscodeAttemptsExceeded)
	default:
		e.metricInc(MetricPasscodeMismatch)
	}
	return fmt.Errorf("%w: %s", invalidErr, result)
}
