package classgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestConfigDefaultsNeedSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without keys must not validate")
	}

	cfg = testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short hs256 key", func(c *Config) { c.JWT.AccessSigningKey = []byte("short") }, "256 bits"},
		{"shared signing keys", func(c *Config) { c.JWT.RefreshSigningKey = c.JWT.AccessSigningKey }, "must differ"},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Hour }, "RefreshTTL"},
		{"unknown signing method", func(c *Config) { c.JWT.SigningMethod = "rs256" }, "unsupported"},
		{"ed25519 without verify keys", func(c *Config) { c.JWT.SigningMethod = "ed25519" }, "verify keys"},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = 5 * time.Minute }, "Leeway"},
		{"short pepper", func(c *Config) { c.Passcode.Pepper = []byte("pepper") }, "Pepper"},
		{"code too short", func(c *Config) { c.Passcode.CodeLength = 3 }, "CodeLength"},
		{"code too long", func(c *Config) { c.Passcode.CodeLength = 11 }, "CodeLength"},
		{"negative attempts", func(c *Config) { c.Passcode.MaxAttempts = -1 }, "MaxAttempts"},
		{"empty prefix", func(c *Config) { c.Passcode.RedisPrefix = " " }, "RedisPrefix"},
		{"throttle without window", func(c *Config) { c.Throttle.RequestWindow = 0 }, "RequestWindow"},
		{"zero login budget", func(c *Config) { c.Throttle.MaxLoginAttempts = 0 }, "MaxLoginAttempts"},
		{"weak argon2 memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"zero min length", func(c *Config) { c.Password.MinLength = 0 }, "MinLength"},
		{"zero store timeout", func(c *Config) { c.Timeouts.Store = 0 }, "Store"},
		{"samesite none without secure", func(c *Config) { c.Security.RequireSecureCookies = false }, "SameSite=None"},
		{"invalid samesite", func(c *Config) { c.Security.SameSitePolicy = http.SameSite(42) }, "SameSitePolicy"},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func productionConfig() Config {
	cfg := testConfig()
	cfg.Security.ProductionMode = true
	cfg.Password.Memory = 64 * 1024
	cfg.Password.Time = 2
	return cfg
}

func TestConfigProductionHardening(t *testing.T) {
	if err := func() error { c := productionConfig(); return c.Validate() }(); err != nil {
		t.Fatalf("hardened production config should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"insecure cookies", func(c *Config) {
			c.Security.RequireSecureCookies = false
			c.Security.SameSitePolicy = http.SameSiteLaxMode
		}},
		{"unbounded attempts", func(c *Config) { c.Passcode.MaxAttempts = 0 }},
		{"too many attempts", func(c *Config) { c.Passcode.MaxAttempts = 50 }},
		{"long code ttl", func(c *Config) { c.Passcode.CodeTTL = time.Hour }},
		{"short codes", func(c *Config) { c.Passcode.CodeLength = 4 }},
		{"no request throttle", func(c *Config) { c.Throttle.MaxRequests = 0 }},
		{"weak argon2", func(c *Config) { c.Password.Memory = 16 * 1024 }},
		{"single pass argon2", func(c *Config) { c.Password.Time = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := productionConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected production validation failure")
			}
		})
	}
}

func TestConfigDevModeAllowsRelaxedSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Passcode.CodeLength = 4
	cfg.Passcode.MaxAttempts = 0
	cfg.Throttle.MaxRequests = 0
	cfg.Security.RequireSecureCookies = false
	cfg.Security.SameSitePolicy = http.SameSiteLaxMode
	if err := cfg.Validate(); err != nil {
		t.Fatalf("development config should validate: %v", err)
	}
}

func TestBuildConfigImmutableAgainstExternalMutation(t *testing.T) {
	cfg := testConfig()
	_, rdb := newTestRedis(t)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(newMemoryUsers()).
		WithClassrooms(&memoryClassrooms{rooms: map[string]Classroom{}}).
		WithMemberships(newMemoryMemberships()).
		WithNotifier(&recordingNotifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	cfg.Passcode.Pepper[0] ^= 0xff
	cfg.JWT.AccessSigningKey[0] ^= 0xff

	got := engine.Config()
	if !bytes.Equal(got.Passcode.Pepper, bytes.Repeat([]byte("p"), 32)) {
		t.Fatal("engine pepper changed through caller slice")
	}
	if !bytes.Equal(got.JWT.AccessSigningKey, bytes.Repeat([]byte("a"), 32)) {
		t.Fatal("engine signing key changed through caller slice")
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	_, rdb := newTestRedis(t)

	full := func() *Builder {
		return New().
			WithConfig(testConfig()).
			WithRedis(rdb).
			WithUserDirectory(newMemoryUsers()).
			WithClassrooms(&memoryClassrooms{}).
			WithMemberships(newMemoryMemberships()).
			WithNotifier(&recordingNotifier{})
	}

	cases := map[string]*Builder{
		"redis":       full().WithRedis(nil),
		"users":       full().WithUserDirectory(nil),
		"classrooms":  full().WithClassrooms(nil),
		"memberships": full().WithMemberships(nil),
		"notifier":    full().WithNotifier(nil),
		"config":      full().WithConfig(DefaultConfig()),
	}
	for name, b := range cases {
		if _, err := b.Build(); err == nil {
			t.Errorf("%s: expected Build failure", name)
		}
	}

	b := full()
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	cfg := testConfig()
	cfg.Delivery.AllowUnverifiedDeliveryInNonProdMode = true
	h := newHarness(t, cfg, nil)

	report := h.engine.SecurityReport()
	if report.ProductionMode || !report.DeliveryFallback || report.SigningAlgorithm != "hs256" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.PasscodeLength != 6 || report.PasscodeMaxAttempts != 5 || !report.RequestThrottleActive {
		t.Fatalf("unexpected passcode posture %+v", report)
	}
	if report.Argon2.MinLength != 6 {
		t.Fatalf("unexpected password policy %+v", report.Argon2)
	}
	if (*Engine)(nil).SecurityReport() != (SecurityReport{}) {
		t.Fatal("nil engine report must be empty")
	}
}

func TestFailureReasons(t *testing.T) {
	cases := []struct {
		err     error
		reason  Reason
		message string
	}{
		{nil, ReasonNone, ""},
		{ErrMissingFields, ReasonValidation, "All fields are required"},
		{fmt.Errorf("%w: too short", ErrWeakPassword), ReasonValidation, "Password is too short"},
		{ErrAlreadyRegistered, ReasonConflict, "User already exists"},
		{fmt.Errorf("%w: mismatch", ErrCodeInvalid), ReasonAuthentication, "Invalid or expired code"},
		{ErrJoinCodeInvalid, ReasonAuthentication, "Invalid or expired code"},
		{ErrInvalidCredentials, ReasonAuthentication, "Invalid credentials"},
		{ErrJoinNotPermitted, ReasonAuthentication, "Not allowed"},
		{ErrRateLimited, ReasonRateLimited, "Too many requests, try again later"},
		{ErrClassroomNotFound, ReasonNotFound, "Classroom not found"},
		{ErrDeliveryFailed, ReasonDependency, "Failed to send code"},
		{errors.New("pq: relation missing"), ReasonInternal, "Something went wrong"},
		{context.DeadlineExceeded, ReasonInternal, "Something went wrong"},
	}
	for _, tc := range cases {
		if got := ReasonOf(tc.err); got != tc.reason {
			t.Errorf("ReasonOf(%v) = %v, want %v", tc.err, got, tc.reason)
		}
		if got := PublicMessage(tc.err); got != tc.message {
			t.Errorf("PublicMessage(%v) = %q, want %q", tc.err, got, tc.message)
		}
	}
}
