package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/classgate/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrPasscodeRateLimited        = errors.New("passcode request rate limited")
	ErrPasscodeLimiterUnavailable = errors.New("passcode limiter unavailable")
)

// PasscodeRequestConfig bounds how often passcodes may be issued.
type PasscodeRequestConfig struct {
	EnableIPThrottle bool
	Window           time.Duration
	MaxRequests      int
}

// PasscodeRequestLimiter throttles passcode issuance per subject and per
// client IP within a flow.
type PasscodeRequestLimiter struct {
	redis  redis.UniversalClient
	config PasscodeRequestConfig
}

func NewPasscodeRequestLimiter(redisClient redis.UniversalClient, cfg PasscodeRequestConfig) *PasscodeRequestLimiter {
	return &PasscodeRequestLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest counts one issuance request for subject (and ip, when IP
// throttling is on) and fails once either budget is exceeded. flow keeps
// the per-IP budgets of different flows apart.
func (l *PasscodeRequestLimiter) CheckRequest(ctx context.Context, flow, subject, ip string) error {
	if l == nil || l.config.MaxRequests <= 0 {
		return nil
	}

	if err := l.enforce(ctx, passcodeSubjectKey(subject)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, passcodeIPKey(flow, ip)); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the subject budget.
func (l *PasscodeRequestLimiter) Reset(ctx context.Context, subject string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, passcodeSubjectKey(subject)).Err(); err != nil {
		return errors.Join(ErrPasscodeLimiterUnavailable, err)
	}
	return nil
}

func (l *PasscodeRequestLimiter) enforce(ctx context.Context, key string) error {
	count, err := rate.Increment(ctx, l.redis, key, l.config.Window)
	if err != nil {
		return errors.Join(ErrPasscodeLimiterUnavailable, err)
	}
	if count > int64(l.config.MaxRequests) {
		return ErrPasscodeRateLimited
	}
	return nil
}

func passcodeSubjectKey(subject string) string {
	return "cgr:" + subject
}

func passcodeIPKey(flow, ip string) string {
	return "cgri:" + flow + ":" + ip
}
