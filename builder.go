package classgate

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/classgate/internal/limiters"
	"github.com/MrEthical07/classgate/internal/rate"
	"github.com/MrEthical07/classgate/jwt"
	"github.com/MrEthical07/classgate/passcode"
	"github.com/MrEthical07/classgate/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder may be used for a single Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       UserDirectory
	classrooms  ClassroomDirectory
	memberships MembershipStore
	notifier    Notifier

	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserDirectory(users UserDirectory) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithClassrooms(classrooms ClassroomDirectory) *Builder {
	b.classrooms = classrooms
	return b
}

func (b *Builder) WithMemberships(memberships MembershipStore) *Builder {
	b.memberships = memberships
	return b
}

func (b *Builder) WithNotifier(notifier Notifier) *Builder {
	b.notifier = notifier
	return b
}

// WithLogger sets the logger for delivery fallbacks and unexpected
// failures. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the sink fed by the audit dispatcher. It has no effect
// unless Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for passcodes, tokens and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and collaborators and returns a ready
// Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user directory required")
	}
	if b.classrooms == nil {
		return nil, errors.New("classroom directory required")
	}
	if b.memberships == nil {
		return nil, errors.New("membership store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- PASSCODES --------
	passcodes, err := passcode.New(b.redis, passcode.Config{
		CodeTTL:          cfg.Passcode.CodeTTL,
		CodeLength:       cfg.Passcode.CodeLength,
		MaxAttempts:      cfg.Passcode.MaxAttempts,
		ExpiredRetention: cfg.Passcode.ExpiredRetention,
		Pepper:           cloneBytes(cfg.Passcode.Pepper),
		RedisPrefix:      cfg.Passcode.RedisPrefix,
		StoreTimeout:     cfg.Timeouts.Store,
		Now:              now,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION TOKENS --------
	tokens, err := jwt.NewIssuer(
		jwt.Config{
			TTL:           cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.AccessSigningKey),
			PublicKey:     cloneBytes(cfg.JWT.AccessVerifyKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
			Now:           now,
		},
		jwt.Config{
			TTL:           cfg.JWT.RefreshTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.RefreshSigningKey),
			PublicKey:     cloneBytes(cfg.JWT.RefreshVerifyKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
			Now:           now,
		},
	)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("classgate-timing-equalizer")
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		now:         now,
		logger:      logger,
		passcodes:   passcodes,
		tokens:      tokens,
		passwords:   hasher,
		dummyHash:   dummyHash,
		users:       b.users,
		classrooms:  b.classrooms,
		memberships: b.memberships,
		notifier:    b.notifier,
	}

	engine.loginLimiter = rate.New(b.redis, rate.Config{
		EnableIPThrottle:      cfg.Throttle.EnableIPThrottle,
		MaxLoginAttempts:      cfg.Throttle.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Throttle.LoginCooldown,
	})
	engine.requestLimiter = limiters.NewPasscodeRequestLimiter(b.redis, limiters.PasscodeRequestConfig{
		EnableIPThrottle: cfg.Throttle.EnableIPThrottle,
		Window:           cfg.Throttle.RequestWindow,
		MaxRequests:      cfg.Throttle.MaxRequests,
	})
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
