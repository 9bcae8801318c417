package ports

import "context"

// HealthChecker is one dependency probed by GET /health.
type HealthChecker interface {
	Name() string
	// Ping returns nil when the dependency can serve requests.
	Ping(ctx context.Context) error
}
