// Package tracex generates the mf-trace-id values sent with every backend
// API call so a request can be correlated across the gate and the
// second-factor service logs.
package tracex

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const prefix = "gate"

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a trace id of the form "gate-<scope>-<ulid>", e.g.
// "gate-owa-01J9ZK...". Scope names the integration surface that triggered
// the call and is lowercased for consistency.
func New(scope string) string {
	mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy)
	mu.Unlock()

	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		return fmt.Sprintf("%s-%s", prefix, id)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, scope, id)
}

// Factory binds a scope so callers can hand a plain func() string to the
// API client.
func Factory(scope string) func() string {
	return func() string { return New(scope) }
}
