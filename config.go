package classgate

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config is the complete engine configuration. Build it with DefaultConfig,
// override fields, and pass it to Builder.WithConfig.
type Config struct {
	JWT      JWTConfig
	Passcode PasscodeConfig
	Throttle ThrottleConfig
	Password PasswordConfig
	Delivery DeliveryConfig
	Timeouts TimeoutConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access/refresh credential pair. Access and
// refresh keys must differ.
type JWTConfig struct {
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	SigningMethod     string // "hs256" (default) or "ed25519"
	AccessSigningKey  []byte
	RefreshSigningKey []byte
	// AccessVerifyKey and RefreshVerifyKey are the ed25519 public keys.
	AccessVerifyKey  []byte
	RefreshVerifyKey []byte
	Issuer           string
	Audience         string
	Leeway           time.Duration
}

/*
====================================
PASSCODE CONFIG
====================================
*/

// PasscodeConfig configures one-time code issuance and verification.
type PasscodeConfig struct {
	CodeTTL          time.Duration
	CodeLength       int
	MaxAttempts      int
	ExpiredRetention time.Duration
	Pepper           []byte
	RedisPrefix      string
}

// ThrottleConfig bounds passcode issuance and failed logins.
type ThrottleConfig struct {
	MaxRequests      int
	RequestWindow    time.Duration
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration
}

// PasswordConfig holds Argon2id parameters and the minimum length policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

// DeliveryConfig controls what happens when a passcode cannot be delivered.
type DeliveryConfig struct {
	// AllowUnverifiedDeliveryInNonProdMode logs undeliverable codes at WARN
	// instead of failing. Ignored when Security.ProductionMode is set.
	AllowUnverifiedDeliveryInNonProdMode bool
}

// TimeoutConfig bounds calls to external collaborators.
type TimeoutConfig struct {
	Store  time.Duration
	Notify time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	ProductionMode       bool
	RequireSecureCookies bool
	SameSitePolicy       http.SameSite
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Signing keys and the
// passcode pepper are left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     24 * time.Hour,
			RefreshTTL:    10 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Passcode: PasscodeConfig{
			CodeTTL:          10 * time.Minute,
			CodeLength:       6,
			MaxAttempts:      5,
			ExpiredRetention: 10 * time.Minute,
			RedisPrefix:      "cgp",
		},
		Throttle: ThrottleConfig{
			MaxRequests:      5,
			RequestWindow:    15 * time.Minute,
			EnableIPThrottle: true,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   6,
		},
		Delivery: DeliveryConfig{
			AllowUnverifiedDeliveryInNonProdMode: false,
		},
		Timeouts: TimeoutConfig{
			Store:  2 * time.Second,
			Notify: 10 * time.Second,
		},
		Security: SecurityConfig{
			ProductionMode:       false,
			RequireSecureCookies: true,
			SameSitePolicy:       http.SameSiteNoneMode,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSigningKey = cloneBytes(cfg.JWT.AccessSigningKey)
	out.JWT.RefreshSigningKey = cloneBytes(cfg.JWT.RefreshSigningKey)
	out.JWT.AccessVerifyKey = cloneBytes(cfg.JWT.AccessVerifyKey)
	out.JWT.RefreshVerifyKey = cloneBytes(cfg.JWT.RefreshVerifyKey)
	out.Passcode.Pepper = cloneBytes(cfg.Passcode.Pepper)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency and the production hardening rules.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.AccessSigningKey) < 32 || len(c.JWT.RefreshSigningKey) < 32 {
			return errors.New("hs256 signing keys must be at least 256 bits")
		}
	case "ed25519":
		if len(c.JWT.AccessSigningKey) == 0 || len(c.JWT.RefreshSigningKey) == 0 {
			return errors.New("ed25519 requires signing keys")
		}
		if len(c.JWT.AccessVerifyKey) == 0 || len(c.JWT.RefreshVerifyKey) == 0 {
			return errors.New("ed25519 requires verify keys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if bytes.Equal(c.JWT.AccessSigningKey, c.JWT.RefreshSigningKey) {
		return errors.New("JWT access and refresh signing keys must differ")
	}

	// Passcode
	if c.Passcode.CodeTTL <= 0 {
		return errors.New("Passcode CodeTTL must be > 0")
	}
	if c.Passcode.CodeLength < 4 || c.Passcode.CodeLength > 10 {
		return errors.New("Passcode CodeLength must be between 4 and 10")
	}
	if c.Passcode.MaxAttempts < 0 || c.Passcode.MaxAttempts > 65535 {
		return errors.New("Passcode MaxAttempts must be between 0 and 65535")
	}
	if c.Passcode.ExpiredRetention < 0 {
		return errors.New("Passcode ExpiredRetention must be >= 0")
	}
	if len(c.Passcode.Pepper) < 16 {
		return errors.New("Passcode Pepper must be at least 16 bytes")
	}
	if strings.TrimSpace(c.Passcode.RedisPrefix) == "" {
		return errors.New("Passcode RedisPrefix must be set")
	}

	// Throttle
	if c.Throttle.MaxRequests < 0 {
		return errors.New("Throttle MaxRequests must be >= 0")
	}
	if c.Throttle.MaxRequests > 0 && c.Throttle.RequestWindow <= 0 {
		return errors.New("Throttle RequestWindow must be > 0")
	}
	if c.Throttle.MaxLoginAttempts <= 0 {
		return errors.New("Throttle MaxLoginAttempts must be > 0")
	}
	if c.Throttle.LoginCooldown <= 0 {
		return errors.New("Throttle LoginCooldown must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Timeouts
	if c.Timeouts.Store <= 0 {
		return errors.New("Timeouts Store must be > 0")
	}
	if c.Timeouts.Notify <= 0 {
		return errors.New("Timeouts Notify must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	switch c.Security.SameSitePolicy {
	case http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode, http.SameSiteNoneMode:
	default:
		return errors.New("Security SameSitePolicy is invalid")
	}
	if c.Security.SameSitePolicy == http.SameSiteNoneMode && !c.Security.RequireSecureCookies {
		return errors.New("SameSite=None requires RequireSecureCookies")
	}

	if c.Security.ProductionMode {
		if !c.Security.RequireSecureCookies {
			return errors.New("ProductionMode requires RequireSecureCookies")
		}
		if c.Passcode.MaxAttempts == 0 || c.Passcode.MaxAttempts > 10 {
			return errors.New("ProductionMode requires Passcode MaxAttempts between 1 and 10")
		}
		if c.Passcode.CodeTTL > 30*time.Minute {
			return errors.New("ProductionMode requires Passcode CodeTTL <= 30m")
		}
		if c.Passcode.CodeLength < 6 {
			return errors.New("ProductionMode requires Passcode CodeLength >= 6")
		}
		if c.Throttle.MaxRequests == 0 {
			return errors.New("ProductionMode requires passcode request throttling")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
	}

	return nil
}
