package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBypassCache struct {
	flags map[string]bool
}

func (c *fakeBypassCache) APIUnreachable(_ context.Context, user string) bool {
	return c.flags[user]
}

func (c *fakeBypassCache) SetAPIUnreachable(_ context.Context, user string) {
	c.flags[user] = true
}

func TestBypass(t *testing.T) {
	t.Parallel()

	t.Run("enabled records and matches", func(t *testing.T) {
		cache := &fakeBypassCache{flags: map[string]bool{}}
		b := NewBypass(cache, true)

		require.False(t, b.Should(context.Background(), "jane.doe"))
		b.RecordUnreachable(context.Background(), "jane.doe")
		require.True(t, b.Should(context.Background(), "jane.doe"))
		require.False(t, b.Should(context.Background(), "john.roe"), "flag is per user")
	})

	t.Run("disabled never bypasses", func(t *testing.T) {
		cache := &fakeBypassCache{flags: map[string]bool{"jane.doe": true}}
		b := NewBypass(cache, false)

		require.False(t, b.Should(context.Background(), "jane.doe"),
			"a stale flag must not bypass when the policy is off")
	})

	t.Run("disabled never writes the flag", func(t *testing.T) {
		cache := &fakeBypassCache{flags: map[string]bool{}}
		b := NewBypass(cache, false)

		b.RecordUnreachable(context.Background(), "jane.doe")
		require.Empty(t, cache.flags)
	})
}
