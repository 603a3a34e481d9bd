package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors Config for environment overrides. Pointer fields stay
// nil when the variable is unset, so defaults and JSON values survive.
type envConfig struct {
	EndpointAddrGRPC             *string        `env:"GOPHAUTH_GRPC_ADDR"`
	MetricsAddr                  *string        `env:"GOPHAUTH_METRICS_ADDR"`
	LogLevel                     *string        `env:"GOPHAUTH_LOG_LEVEL"`
	DatabaseDSN                  *string        `env:"GOPHAUTH_DATABASE_DSN"`
	AccessTokenSecret            *string        `env:"GOPHAUTH_ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret           *string        `env:"GOPHAUTH_REFRESH_TOKEN_SECRET"`
	AccessTokenValidityDuration  *time.Duration `env:"GOPHAUTH_ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration *time.Duration `env:"GOPHAUTH_REFRESH_TOKEN_TTL"`
	PasswordHashCost             *int           `env:"GOPHAUTH_PASSWORD_HASH_COST"`
	NotificationsEnabled         *bool          `env:"GOPHAUTH_NOTIFICATIONS_ENABLED"`
	APIURL                       *string        `env:"GOPHAUTH_API_URL"`
	SessionStore                 *string        `env:"GOPHAUTH_SESSION_STORE"`
	RedisURL                     *string        `env:"GOPHAUTH_REDIS_URL"`
	S3RootUser                   *string        `env:"GOPHAUTH_S3_ROOT_USER"`
	S3RootPassword               *string        `env:"GOPHAUTH_S3_ROOT_PASSWORD"`
	S3Bucket                     *string        `env:"GOPHAUTH_S3_BUCKET"`
	S3Region                     *string        `env:"GOPHAUTH_S3_REGION"`
	S3BaseEndpoint               *string        `env:"GOPHAUTH_S3_BASE_ENDPOINT"`
}

// parseEnv overlays GOPHAUTH_* variables onto config. A malformed value
// panics, like a malformed config file.
func parseEnv(config *Config) {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, e.EndpointAddrGRPC)
	setString(&config.MetricsAddr, e.MetricsAddr)
	setString(&config.LogLevel, e.LogLevel)
	setString(&config.DatabaseDSN, e.DatabaseDSN)
	setString(&config.AccessTokenSecret, e.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, e.RefreshTokenSecret)
	if e.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = *e.AccessTokenValidityDuration
	}
	if e.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = *e.RefreshTokenValidityDuration
	}
	if e.PasswordHashCost != nil {
		config.PasswordHashCost = *e.PasswordHashCost
	}
	if e.NotificationsEnabled != nil {
		config.NotificationsEnabled = *e.NotificationsEnabled
	}
	setString(&config.APIURL, e.APIURL)
	setString(&config.SessionStore, e.SessionStore)
	setString(&config.RedisURL, e.RedisURL)
	setString(&config.S3RootUser, e.S3RootUser)
	setString(&config.S3RootPassword, e.S3RootPassword)
	setString(&config.S3Bucket, e.S3Bucket)
	setString(&config.S3Region, e.S3Region)
	setString(&config.S3BaseEndpoint, e.S3BaseEndpoint)
}
