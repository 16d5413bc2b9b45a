package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	phcAlgorithm = "argon2id"

	floorMemoryKB    uint32 = 8 * 1024
	floorTime        uint32 = 1
	floorParallelism uint8  = 1
	floorSaltLength  uint32 = 16
	floorKeyLength   uint32 = 16

	// DefaultMinLength is the shortest password accepted at registration.
	DefaultMinLength = 6
	// DefaultMaxPasswordBytes caps the input handed to key derivation.
	DefaultMaxPasswordBytes = 1024
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	// ErrMalformedHash reports a stored hash that is not a supported PHC
	// argon2id string.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds Argon2id cost parameters and the length policy.
// Zero MinLength and MaxPasswordBytes select the defaults.
type Config struct {
	Memory           uint32 // KiB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinLength        int
	MaxPasswordBytes int
}

// costs are the derivation parameters recorded in every encoded hash.
type costs struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func (c costs) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.parallelism, keyLen)
}

// Argon2 hashes and verifies passwords. Safe for concurrent use.
type Argon2 struct {
	costs      costs
	saltLength uint32
	keyLength  uint32
	minLength  int
	maxBytes   int
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	switch {
	case cfg.Memory < floorMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KiB", floorMemoryKB)
	case cfg.Time < floorTime:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < floorParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < floorSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", floorSaltLength)
	case cfg.KeyLength < floorKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", floorKeyLength)
	case cfg.MinLength < 1:
		return nil, errors.New("password min length must be >= 1")
	case cfg.MaxPasswordBytes < cfg.MinLength:
		return nil, errors.New("password max bytes must be >= min length")
	}

	return &Argon2{
		costs:      costs{memory: cfg.Memory, time: cfg.Time, parallelism: cfg.Parallelism},
		saltLength: cfg.SaltLength,
		keyLength:  cfg.KeyLength,
		minLength:  cfg.MinLength,
		maxBytes:   cfg.MaxPasswordBytes,
	}, nil
}

// Check applies the length policy without hashing. Length counts bytes of
// the raw string.
func (a *Argon2) Check(password string) error {
	switch {
	case len(password) < a.minLength:
		return ErrPasswordTooShort
	case len(password) > a.maxBytes:
		return ErrPasswordTooLong
	}
	return nil
}

// Hash returns the PHC-encoded Argon2id hash of password.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.Check(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	return encodePHC(a.costs, salt, a.costs.derive(password, salt, a.keyLength)), nil
}

// Verify reports whether password matches encoded. Oversized input is
// rejected before any key derivation.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.maxBytes {
		return false, ErrPasswordTooLong
	}

	c, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	got := c.derive(password, salt, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

func encodePHC(c costs, salt, key []byte) string {
	b64 := base64.StdEncoding
	return "$" + phcAlgorithm +
		"$v=" + strconv.Itoa(argon2.Version) +
		"$m=" + strconv.FormatUint(uint64(c.memory), 10) +
		",t=" + strconv.FormatUint(uint64(c.time), 10) +
		",p=" + strconv.FormatUint(uint64(c.parallelism), 10) +
		"$" + b64.EncodeToString(salt) +
		"$" + b64.EncodeToString(key)
}

// decodePHC parses $argon2id$v=19$m=..,t=..,p=..$salt$key.
func decodePHC(encoded string) (costs, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return costs{}, nil, nil, fmt.Errorf("%w: expected 5 sections", ErrMalformedHash)
	}
	if fields[1] != phcAlgorithm {
		return costs{}, nil, nil, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}

	version, ok := strings.CutPrefix(fields[2], "v=")
	if !ok || version != strconv.Itoa(argon2.Version) {
		return costs{}, nil, nil, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}

	c, err := decodeCosts(fields[3])
	if err != nil {
		return costs{}, nil, nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(fields[4])
	if err != nil || len(salt) < int(floorSaltLength) {
		return costs{}, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := base64.StdEncoding.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return costs{}, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	return c, salt, key, nil
}

// decodeCosts reads exactly one each of m, t and p, in any order.
func decodeCosts(section string) (costs, error) {
	var (
		c    costs
		seen = map[string]bool{}
	)

	for _, entry := range strings.Split(section, ",") {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok || seen[name] {
			return costs{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, entry)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorMemoryKB {
				return costs{}, fmt.Errorf("%w: memory", ErrMalformedHash)
			}
			c.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorTime {
				return costs{}, fmt.Errorf("%w: time", ErrMalformedHash)
			}
			c.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < floorParallelism {
				return costs{}, fmt.Errorf("%w: parallelism", ErrMalformedHash)
			}
			c.parallelism = uint8(v)
		default:
			return costs{}, fmt.Errorf("%w: parameter %q", ErrMalformedHash, name)
		}
	}

	if len(seen) != 3 {
		return costs{}, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return c, nil
}
