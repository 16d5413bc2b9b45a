package classgate

import "time"

// SecurityReport summarizes the security posture of a built Engine. It
// carries no key material.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	PasscodeTTL           time.Duration
	PasscodeLength        int
	PasscodeMaxAttempts   int
	Argon2                PasswordConfigReport
	RequestThrottleActive bool
	LoginThrottleActive   bool
	IPThrottleActive      bool
	SecureCookies         bool
	DeliveryFallback      bool
	AuditEnabled          bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return SecurityReport{
		ProductionMode:      cfg.Security.ProductionMode,
		SigningAlgorithm:    cfg.JWT.SigningMethod,
		AccessTTL:           cfg.JWT.AccessTTL,
		RefreshTTL:          cfg.JWT.RefreshTTL,
		PasscodeTTL:         cfg.Passcode.CodeTTL,
		PasscodeLength:      cfg.Passcode.CodeLength,
		PasscodeMaxAttempts: cfg.Passcode.MaxAttempts,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinLength:   cfg.Password.MinLength,
		},
		RequestThrottleActive: cfg.Throttle.MaxRequests > 0,
		LoginThrottleActive:   cfg.Throttle.MaxLoginAttempts > 0 && cfg.Throttle.LoginCooldown > 0,
		IPThrottleActive:      cfg.Throttle.EnableIPThrottle,
		SecureCookies:         cfg.Security.RequireSecureCookies,
		DeliveryFallback:      cfg.Delivery.AllowUnverifiedDeliveryInNonProdMode && !cfg.Security.ProductionMode,
		AuditEnabled:          cfg.Audit.Enabled,
	}
}
