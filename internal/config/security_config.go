package config

import (
	"strconv"
	"time"
)

type Security struct{}

var _ SecurityConfig = Security{}

// GetTokenSecret returns the HS256 signing secret for access tokens.
// Must be set in every non-dev environment; the dev default only ever signs
// throwaway local sessions.
func (Security) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "dev-only-secret-change-me-0123456789")
}

func (Security) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", "com.medflow.auth")
}

func (Security) GetTokenAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "medflow-emr")
}

func (Security) GetSessionTTL() time.Duration {
	return getDuration("SESSION_TTL", 12*time.Hour)
}

func (Security) GetTwoFactorTTL() time.Duration {
	return getDuration("TWO_FACTOR_TTL", 5*time.Minute)
}

func (Security) GetTwoFactorAttempts() int {
	return getInt("TWO_FACTOR_ATTEMPTS", 3)
}

func (Security) GetLoginRatePerMinute() int {
	return getInt("LOGIN_RATE_PER_MINUTE", 10)
}

func (Security) GetLoginRateBurst() int {
	return getInt("LOGIN_RATE_BURST", 5)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	if v := GetEnv(envVar, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getInt(envVar string, defaultValue int) int {
	if v := GetEnv(envVar, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
