package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// Startup connection retries
const (
	DBConnectRetries = 5
	DBConnectBackoff = 500 * time.Millisecond
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Maximum rows returned by GET /device-log
const DeviceLogPageSize = 100

// Rate limiting window shared by all limiters
const RateLimitWindow = time.Minute

// Fallback limits when a configured value is not positive
const (
	DefaultResolveRateLimitPerMin = 10
	DefaultDeviceRateLimitPerMin  = 60
)
