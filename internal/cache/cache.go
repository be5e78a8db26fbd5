// Package cache provides the key/value store used for one-time passwords,
// rate-limit counters, cached stats and notification de-duplication.
//
// Two implementations exist: Memory (single process) and Redis (shared
// between replicas). Both honour per-key TTLs.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a string key/value store with per-key expiry.
type Store interface {
	// Get returns the value for key or ErrMiss.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Incr increments the integer at key, creating it with the given ttl on
	// first use, and returns the new value and the remaining ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
	Close() error
}
