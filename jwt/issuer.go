package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// Failure is the closed set of token verification failure kinds.
type Failure int

const (
	FailureNone Failure = iota
	FailureMalformed
	FailureBadSignature
	FailureExpired
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMalformed:
		return "malformed"
	case FailureBadSignature:
		return "bad_signature"
	case FailureExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer mints and verifies session credential pairs with two independent
// managers. It holds no mutable state.
type Issuer struct {
	access  *Manager
	refresh *Manager
}

// NewIssuer builds the access and refresh managers. The two configurations
// must not share signing key material.
func NewIssuer(access, refresh Config) (*Issuer, error) {
	access.Type = TypeAccess
	refresh.Type = TypeRefresh

	if len(access.PrivateKey) > 0 && bytes.Equal(access.PrivateKey, refresh.PrivateKey) {
		return nil, errors.New("access and refresh signing keys must differ")
	}
	if len(access.PublicKey) > 0 && bytes.Equal(access.PublicKey, refresh.PublicKey) {
		return nil, errors.New("access and refresh verify keys must differ")
	}

	accessManager, err := NewManager(access)
	if err != nil {
		return nil, fmt.Errorf("access manager: %w", err)
	}
	refreshManager, err := NewManager(refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh manager: %w", err)
	}

	return &Issuer{access: accessManager, refresh: refreshManager}, nil
}

// IssuePair mints both tokens for userID.
func (i *Issuer) IssuePair(userID string) (Pair, error) {
	accessToken, accessExp, err := i.access.Create(userID)
	if err != nil {
		return Pair{}, err
	}
	refreshToken, refreshExp, err := i.refresh.Create(userID)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess returns the user id carried by a valid access token.
func (i *Issuer) VerifyAccess(token string) (string, error) {
	return verifyWith(i.access, token)
}

// VerifyRefresh returns the user id carried by a valid refresh token.
func (i *Issuer) VerifyRefresh(token string) (string, error) {
	return verifyWith(i.refresh, token)
}

// AccessTTL reports the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.access.config.TTL }

// RefreshTTL reports the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refresh.config.TTL }

func verifyWith(m *Manager, token string) (string, error) {
	if token == "" {
		return "", ErrTokenMalformed
	}
	claims, err := m.Parse(token)
	if err != nil {
		return "", wrapParseError(err)
	}
	return claims.UID, nil
}

func wrapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// Classify maps an error returned by VerifyAccess or VerifyRefresh to its
// Failure kind. Unknown non-nil errors classify as malformed.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, ErrTokenBadSignature):
		return FailureBadSignature
	default:
		return FailureMalformed
	}
}
