// Package cache holds the process-local (or Redis-shared) TTL state the
// gate keeps between requests: directory lookups, challenge verdicts, the
// backend-unreachable bypass flag and support contact info. Nothing here is
// durable; every entry expires.
package cache

import (
	"context"
	"time"
)

// Store is the minimal TTL key-value contract both drivers implement.
// Values are strings; callers JSON-encode anything structured.
type Store interface {
	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes the value with the given TTL, replacing any previous entry.
	// A zero or negative TTL is rejected.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}
