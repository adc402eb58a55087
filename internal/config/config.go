package config

import "time"

type Config interface {
	EnvConfig
	SecurityConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDatabasePath() string
}

type SecurityConfig interface {
	GetTokenSecret() string
	GetTokenIssuer() string
	GetTokenAudience() string
	GetSessionTTL() time.Duration
	GetTwoFactorTTL() time.Duration
	GetTwoFactorAttempts() int
	GetLoginRatePerMinute() int
	GetLoginRateBurst() int
}

type CorsConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Security
	Cors
}

func New() Config {
	return mainConfig{}
}
