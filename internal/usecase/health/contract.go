package health

import "context"

// Pinger checks availability of a store (catalog database, vector cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExtractorChecker checks the extractor backend.
type ExtractorChecker interface {
	HealthCheck(ctx context.Context) error
}
