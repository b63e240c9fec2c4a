package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"device_pass", "client_pass", "change-me", "secret", "password", "admin",
}

const minSecretLength = 12

// RoleCredential is the static Basic-auth pair for one role. Exactly one of
// Password or PasswordHash is set.
type RoleCredential struct {
	User         string
	Password     string
	PasswordHash string
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	AppEnv                 string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL"`
	DeviceAuthUser         string `env:"DEVICE_AUTH_USER,required"`
	DeviceAuthPassword     string `env:"DEVICE_AUTH_PASSWORD"`
	DeviceAuthPasswordHash string `env:"DEVICE_AUTH_PASSWORD_HASH"`
	ClientAuthUser         string `env:"CLIENT_AUTH_USER,required"`
	ClientAuthPassword     string `env:"CLIENT_AUTH_PASSWORD"`
	ClientAuthPasswordHash string `env:"CLIENT_AUTH_PASSWORD_HASH"`
	OTPTTLSeconds          int    `env:"OTP_TTL_SECONDS" envDefault:"600"`
	ReaperIntervalSeconds  int    `env:"REAPER_INTERVAL_SECONDS" envDefault:"600"`
	StoreTimeoutSeconds    int    `env:"STORE_TIMEOUT_SECONDS" envDefault:"5"`
	LogRetentionDays       int    `env:"LOG_RETENTION_DAYS" envDefault:"0"`
	ResolveRateLimitPerMin int    `env:"RESOLVE_RATE_LIMIT_PER_MIN" envDefault:"10"`
	DeviceRateLimitPerMin  int    `env:"DEVICE_RATE_LIMIT_PER_MIN" envDefault:"60"`
	AutoMigrate            bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLSeconds) * time.Second
}

func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// LogRetention returns zero when log pruning is disabled.
func (c *Config) LogRetention() time.Duration {
	if c.LogRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.LogRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) DeviceCredential() RoleCredential {
	return RoleCredential{
		User:         c.DeviceAuthUser,
		Password:     c.DeviceAuthPassword,
		PasswordHash: c.DeviceAuthPasswordHash,
	}
}

func (c *Config) ClientCredential() RoleCredential {
	return RoleCredential{
		User:         c.ClientAuthUser,
		Password:     c.ClientAuthPassword,
		PasswordHash: c.ClientAuthPasswordHash,
	}
}

func (c *Config) Validate(isProduction bool) error {
	if c.OTPTTLSeconds <= 0 {
		return fmt.Errorf("OTP_TTL_SECONDS must be positive")
	}
	if c.ReaperIntervalSeconds <= 0 {
		return fmt.Errorf("REAPER_INTERVAL_SECONDS must be positive")
	}
	if c.StoreTimeoutSeconds <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_SECONDS must be positive")
	}

	if err := validateCredential("DEVICE_AUTH", c.DeviceCredential(), isProduction); err != nil {
		return err
	}
	if err := validateCredential("CLIENT_AUTH", c.ClientCredential(), isProduction); err != nil {
		return err
	}
	if c.DeviceAuthUser == c.ClientAuthUser {
		return fmt.Errorf("DEVICE_AUTH_USER and CLIENT_AUTH_USER must differ")
	}

	if isProduction && c.RedisURL == "" {
		log.Warn().Msg("REDIS_URL is empty in production: rate limits are per instance")
	}

	return nil
}

func validateCredential(prefix string, cred RoleCredential, isProduction bool) error {
	if cred.User == "" {
		return fmt.Errorf("%s_USER is required", prefix)
	}

	hasPassword := cred.Password != ""
	hasHash := cred.PasswordHash != ""
	if hasPassword == hasHash {
		return fmt.Errorf("set exactly one of %s_PASSWORD or %s_PASSWORD_HASH", prefix, prefix)
	}

	if hasHash {
		if !strings.HasPrefix(cred.PasswordHash, "$2a$") &&
			!strings.HasPrefix(cred.PasswordHash, "$2b$") &&
			!strings.HasPrefix(cred.PasswordHash, "$2y$") {
			return fmt.Errorf("%s_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)", prefix)
		}
		return nil
	}

	if isProduction {
		return validateSecret(prefix+"_PASSWORD", cred.Password)
	}
	return nil
}

func validateSecret(name, value string) error {
	if len(value) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters in production", name, minSecretLength)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
