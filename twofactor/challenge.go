package twofactor

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

// CodeLength is the fixed width of a one-time code.
const CodeLength = 6

// Challenge is the ephemeral one-time code gating the finalization of a
// pending session. It is destroyed on success, on expiry, or once attempts
// are exhausted; the user must then restart the login.
type Challenge struct {
	SessionID         string    // The pending session this challenge belongs to
	Code              string    // Numeric, fixed width
	ExpiresAt         time.Time
	AttemptsRemaining int
}

// GenerateCode returns a fixed-width numeric one-time code drawn from a
// cryptographically secure source.
func GenerateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// Matches compares the submitted code in constant time.
func (c Challenge) Matches(submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Code), []byte(submitted)) == 1
}

// ExpiredAt reports whether the challenge deadline has passed.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
