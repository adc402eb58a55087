// Package token issues the signed access tokens the browser UI holds
// alongside its opaque session id. The session store stays the source of
// truth; a token is presentation-layer convenience and never outlives its
// session.
package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minSecretLength = 32

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims carried by an access token.
type Claims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwtlib.RegisteredClaims
}

// Creator signs and parses HS256 access tokens.
type Creator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewCreator validates the signing secret and returns a Creator.
func NewCreator(secret []byte, issuer, audience string) (*Creator, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if issuer == "" {
		return nil, fmt.Errorf("token issuer is required")
	}
	return &Creator{secret: secret, issuer: issuer, audience: audience}, nil
}

// AccessToken creates a signed token bound to the session. Expiry matches
// the session's expiry so the token never outlives it.
func (c *Creator) AccessToken(userID, email, role, sessionID string, expiresAt time.Time) (string, error) {
	now := NowTimeFunc()
	claims := Claims{
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			Audience:  jwtlib.ClaimStrings{c.audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and expiry, and returns the
// claims.
func (c *Creator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwtlib.WithIssuer(c.issuer),
		jwtlib.WithAudience(c.audience),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}
