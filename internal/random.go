package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// MinPasscodeDigits and MaxPasscodeDigits bound the numeric passcode length.
	MinPasscodeDigits = 4
	MaxPasscodeDigits = 10

	passcodeSaltSize = 16
)

// NewPasscode returns a numeric code of the given length. Each digit is drawn
// independently and uniformly from crypto/rand, so leading zeros are as likely
// as any other digit and the whole 10^digits space is reachable.
func NewPasscode(digits int) (string, error) {
	if digits < MinPasscodeDigits || digits > MaxPasscodeDigits {
		return "", errors.New("invalid passcode digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid passcode generation length")
	}
	return code, nil
}

// NewPasscodeSalt returns fresh random salt bytes for a passcode record.
func NewPasscodeSalt() ([passcodeSaltSize]byte, error) {
	var salt [passcodeSaltSize]byte
	_, err := rand.Read(salt[:])
	return salt, err
}

// IsNumericCode reports whether code is exactly digits ASCII digits.
func IsNumericCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
