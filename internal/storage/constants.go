package db

import "time"

// Connection pool defaults.
const (
	defaultMaxConns          = 10
	defaultMinConns          = 2
	defaultMaxConnIdleTime   = 5 * time.Minute
	defaultMaxConnLifetime   = time.Hour
	defaultHealthCheckPeriod = time.Minute

	maxConnectionRetries = 5
	// ConnectionRetrySleep is the pause between connection attempts.
	ConnectionRetrySleep = 2 * time.Second
)
