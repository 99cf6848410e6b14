package utils

import (
	"context"
	"time"
)

// DefaultQueryTimeout bounds a single handler query.
const DefaultQueryTimeout = 30 * time.Second

// GetQueryContext returns a context with timeout for database queries.
// A nil parent is replaced with context.Background.
func GetQueryContext(parentCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	return context.WithTimeout(parentCtx, timeout)
}

// GetDefaultQueryContext returns a context with the default query timeout.
func GetDefaultQueryContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	return GetQueryContext(parentCtx, DefaultQueryTimeout)
}

// GetJobContext returns the whole-run context for a batch job.
func GetJobContext(parentCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return GetQueryContext(parentCtx, timeout)
}
