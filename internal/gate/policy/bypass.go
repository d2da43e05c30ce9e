package policy

import (
	"context"

	"github.com/ironbark/mfagate/pkg/slogx"
)

// BypassCache is the slice of the cache adapter the bypass policy needs.
type BypassCache interface {
	APIUnreachable(ctx context.Context, user string) bool
	SetAPIUnreachable(ctx context.Context, user string)
}

// Bypass lets users through without a challenge for a short window after
// the verification backend proved unreachable for them. The flag is only
// ever written after a real unreachable failure, so a healthy backend
// never produces bypassed logins.
type Bypass struct {
	cache   BypassCache
	enabled bool
}

func NewBypass(cache BypassCache, enabled bool) *Bypass {
	return &Bypass{cache: cache, enabled: enabled}
}

func (b *Bypass) Enabled() bool {
	return b.enabled
}

// Should reports whether the user currently rides the bypass window.
// Always false when the policy is disabled, regardless of cache state.
func (b *Bypass) Should(ctx context.Context, user string) bool {
	return b.enabled && b.cache.APIUnreachable(ctx, user)
}

// RecordUnreachable opens the bypass window for the user. A no-op when the
// policy is disabled so the flag never exists to begin with.
func (b *Bypass) RecordUnreachable(ctx context.Context, user string) {
	if !b.enabled {
		return
	}
	slogx.FromContext(ctx).Warn("policy: verification backend unreachable, opening bypass window", "user", user)
	b.cache.SetAPIUnreachable(ctx, user)
}
