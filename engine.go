package classgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/classgate/internal/limiters"
	"github.com/MrEthical07/classgate/internal/logging"
	"github.com/MrEthical07/classgate/internal/rate"
	"github.com/MrEthical07/classgate/jwt"
	"github.com/MrEthical07/classgate/passcode"
	"github.com/MrEthical07/classgate/password"
)

// Engine runs the registration, login, session and classroom join flows.
// It is immutable after Build and safe for concurrent use.
type Engine struct {
	config Config
	now    func() time.Time
	logger *slog.Logger

	passcodes      *passcode.Engine
	tokens         *jwt.Issuer
	passwords      *password.Argon2
	dummyHash      string
	loginLimiter   *rate.Limiter
	requestLimiter *limiters.PasscodeRequestLimiter

	users       UserDirectory
	classrooms  ClassroomDirectory
	memberships MembershipStore
	notifier    Notifier

	audit   *auditDispatcher
	metrics *Metrics
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Close drains the audit dispatcher. It does not close the Redis client or
// the directories.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AccessTTL and RefreshTTL report the token lifetimes, used for cookie
// max-age by transports.
func (e *Engine) AccessTTL() time.Duration  { return e.tokens.AccessTTL() }
func (e *Engine) RefreshTTL() time.Duration { return e.tokens.RefreshTTL() }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.Store)
}

// dependencyError passes known sentinels through. Anything else is logged
// and collapsed to ErrStoreUnavailable for backend failures or ErrInternal.
func (e *Engine) dependencyError(ctx context.Context, op string, err error) error {
	if ReasonOf(err) != ReasonInternal {
		return err
	}

	logging.LogError(ctx, e.logger, op, err)

	switch {
	case errors.Is(err, passcode.ErrStoreUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, limiters.ErrPasscodeLimiterUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		e.metricInc(MetricStoreFailure)
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
	default:
		return ErrInternal
	}
}

// throttleIssue counts one passcode request for subject.
func (e *Engine) throttleIssue(ctx context.Context, flow, subject string) error {
	err := e.requestLimiter.CheckRequest(ctx, flow, subject, ClientIPFromContext(ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, limiters.ErrPasscodeRateLimited) {
		e.metricInc(MetricPasscodeRateLimited)
		e.emitRateLimit(ctx, flow, subject)
		return ErrRateLimited
	}
	return e.dependencyError(ctx, "passcode throttle", err)
}

// deliver hands a freshly issued code to the notifier. When delivery fails
// and the non-production fallback is enabled the code is logged instead.
func (e *Engine) deliver(ctx context.Context, flow, to string, msg message, code string) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.config.Timeouts.Notify)
	defer cancel()

	err := e.notifier.Send(sendCtx, to, msg.subject, msg.body)
	if err == nil {
		e.metricInc(MetricDeliverySuccess)
		e.emitAudit(ctx, auditEventPasscodeDelivery, true, "", to, nil, func() map[string]string {
			return map[string]string{"flow": flow}
		})
		return nil
	}

	e.metricInc(MetricDeliveryFailure)

	if e.config.Delivery.AllowUnverifiedDeliveryInNonProdMode && !e.config.Security.ProductionMode {
		e.metricInc(MetricDeliveryFallback)
		e.logger.WarnContext(ctx, "passcode delivery failed, logging code instead",
			"flow", flow, "to", to, "code", code, "error", err)
		return nil
	}

	logging.LogError(ctx, e.logger, "passcode delivery failed", err)
	e.emitAudit(ctx, auditEventPasscodeDelivery, false, "", to, ErrDeliveryFailed, func() map[string]string {
		return map[string]string{"flow": flow}
	})
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func registrationSubject(email string) string {
	return "email:" + email
}

// joinSubject length-prefixes classroomID so ids containing ':' cannot
// collide with another classroom and email pair.
func joinSubject(classroomID, email string) string {
	return "join:" + strconv.Itoa(len(classroomID)) + ":" + classroomID + ":" + email
}
