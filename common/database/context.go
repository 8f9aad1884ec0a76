// Package database holds the deadlines applied to alert store calls.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds a single read: duplicate checks, lookups,
	// correlation counts and the statistics query.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds inserts, deletes and raw_data merges.
	DefaultWriteTimeout = 10 * time.Second
)

// QueryContext derives a context that expires after DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext derives a context that expires after DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}
