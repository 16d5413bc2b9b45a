package passcode

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/classgate/internal"
	"github.com/MrEthical07/classgate/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Result is the outcome of a Verify call that reached the store.
type Result int

const (
	ResultVerified Result = iota
	ResultNoActiveCode
	ResultExpired
	ResultMismatch
	ResultAttemptsExceeded
)

func (r Result) String() string {
	switch r {
	case ResultVerified:
		return "verified"
	case ResultNoActiveCode:
		return "no_active_code"
	case ResultExpired:
		return "expired"
	case ResultMismatch:
		return "mismatch"
	case ResultAttemptsExceeded:
		return "attempts_exceeded"
	default:
		return "unknown"
	}
}

var (
	// ErrStoreUnavailable reports a backend failure or timeout.
	ErrStoreUnavailable = errors.New("passcode store unavailable")
	// ErrInvalidSubject is returned for an empty subject key.
	ErrInvalidSubject = errors.New("invalid passcode subject")
)

// Config holds the passcode lifecycle parameters.
type Config struct {
	CodeTTL          time.Duration
	CodeLength       int
	MaxAttempts      int
	ExpiredRetention time.Duration
	Pepper           []byte
	RedisPrefix      string
	StoreTimeout     time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Engine issues and verifies passcodes. It is safe for concurrent use.
type Engine struct {
	store *stores.PasscodeStore
	cfg   Config
}

// New validates cfg and returns an Engine backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) (*Engine, error) {
	if redisClient == nil {
		return nil, errors.New("passcode: redis client is required")
	}
	if cfg.CodeTTL <= 0 {
		return nil, errors.New("passcode: CodeTTL must be > 0")
	}
	if cfg.CodeLength < internal.MinPasscodeDigits || cfg.CodeLength > internal.MaxPasscodeDigits {
		return nil, fmt.Errorf("passcode: CodeLength must be in [%d,%d]", internal.MinPasscodeDigits, internal.MaxPasscodeDigits)
	}
	if cfg.MaxAttempts < 0 || cfg.MaxAttempts > 65535 {
		return nil, errors.New("passcode: MaxAttempts out of range")
	}
	if cfg.ExpiredRetention < 0 {
		return nil, errors.New("passcode: ExpiredRetention must be >= 0")
	}
	if len(cfg.Pepper) < 16 {
		return nil, errors.New("passcode: Pepper must be at least 16 bytes")
	}
	if cfg.StoreTimeout < 0 {
		return nil, errors.New("passcode: StoreTimeout must be >= 0")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Pepper = append([]byte(nil), cfg.Pepper...)

	return &Engine{
		store: stores.NewPasscodeStore(redisClient, cfg.RedisPrefix, cfg.CodeTTL+cfg.ExpiredRetention),
		cfg:   cfg,
	}, nil
}

// Issue generates a new code for subject, replacing any active code, and
// returns the plaintext. The plaintext is never persisted.
func (e *Engine) Issue(ctx context.Context, subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrInvalidSubject
	}

	code, err := internal.NewPasscode(e.cfg.CodeLength)
	if err != nil {
		return "", err
	}
	salt, err := internal.NewPasscodeSalt()
	if err != nil {
		return "", err
	}

	record := &stores.PasscodeRecord{
		Subject:   subject,
		Salt:      salt,
		Hash:      e.mac(salt, subject, code),
		CreatedAt: e.cfg.Now().UnixNano(),
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := e.store.Save(ctx, record, e.cfg.CodeTTL+e.cfg.ExpiredRetention); err != nil {
		return "", e.storeError(err)
	}
	return code, nil
}

// Verify checks candidate against the active code for subject. A match
// consumes the code. A candidate equal to a code that was superseded,
// expired or already used reports ResultNoActiveCode and does not count as
// an attempt against the active code. The error is non-nil only when the
// store fails.
func (e *Engine) Verify(ctx context.Context, subject, candidate string) (Result, error) {
	if strings.TrimSpace(subject) == "" {
		return ResultNoActiveCode, ErrInvalidSubject
	}

	wellFormed := internal.IsNumericCode(candidate, e.cfg.CodeLength)
	matches := func(rec *stores.PasscodeRecord) bool {
		if !wellFormed {
			return false
		}
		expected := e.mac(rec.Salt, subject, candidate)
		return hmac.Equal(expected[:], rec.Hash[:])
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	outcome, err := e.store.Consume(ctx, subject, e.cfg.Now(), e.cfg.CodeTTL, e.cfg.MaxAttempts, matches)
	if err != nil {
		return ResultNoActiveCode, e.storeError(err)
	}

	switch outcome {
	case stores.ConsumeVerified:
		return ResultVerified, nil
	case stores.ConsumeExpired:
		return ResultExpired, nil
	case stores.ConsumeMismatch:
		return ResultMismatch, nil
	case stores.ConsumeAttemptsExceeded:
		return ResultAttemptsExceeded, nil
	default:
		return ResultNoActiveCode, nil
	}
}

// Invalidate deletes any active code for subject.
func (e *Engine) Invalidate(ctx context.Context, subject string) error {
	if strings.TrimSpace(subject) == "" {
		return ErrInvalidSubject
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if _, err := e.store.Delete(ctx, subject); err != nil {
		return e.storeError(err)
	}
	return nil
}

func (e *Engine) mac(salt [16]byte, subject, code string) [32]byte {
	h := hmac.New(sha256.New, e.cfg.Pepper)
	h.Write(salt[:])
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(code))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.StoreTimeout)
}

func (e *Engine) storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
