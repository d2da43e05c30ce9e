package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GATE_API_URL", "https://api.multifactor.example.com")
	t.Setenv("GATE_API_KEY", "key")
	t.Setenv("GATE_API_SECRET", "secret")
	t.Setenv("GATE_DIRECTORY_DOMAINS", "corp.example.com")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, []string{"corp.example.com"}, cfg.DirectoryDomains)
	require.Equal(t, []string{"mobile", "telephoneNumber"}, cfg.PhoneAttributes)
	require.True(t, cfg.BypassWhenAPIUnreachable)
	require.Equal(t, 15*time.Minute, cfg.DirectoryCacheTTL)
	require.Equal(t, 15*time.Minute, cfg.APILifeCheckInterval)
	require.Equal(t, 45*time.Second, cfg.AllowTTL)
	require.Equal(t, 60*time.Second, cfg.DenyTTL)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, int64(8), cfg.DirectoryMaxQueries)
	require.Empty(t, cfg.RedisAddr)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATE_DIRECTORY_DOMAINS", "one.example.com; two.example.com ;")
	t.Setenv("GATE_PHONE_ATTRIBUTES", "telephoneNumber;otherMobile")
	t.Setenv("GATE_BYPASS_WHEN_API_UNREACHABLE", "false")
	t.Setenv("GATE_ALLOW_TTL", "30s")
	t.Setenv("GATE_DIRECTORY_CACHE_TTL", "5")
	t.Setenv("GATE_2FA_GROUP", "2FA Users")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, []string{"one.example.com", "two.example.com"}, cfg.DirectoryDomains)
	require.Equal(t, []string{"telephoneNumber", "otherMobile"}, cfg.PhoneAttributes)
	require.False(t, cfg.BypassWhenAPIUnreachable)
	require.Equal(t, 30*time.Second, cfg.AllowTTL)
	require.Equal(t, 5*time.Minute, cfg.DirectoryCacheTTL, "bare integers are minutes")
	require.Equal(t, "2FA Users", cfg.SecondFactorGroup)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name  string
		unset string
	}{
		{"missing api url", "GATE_API_URL"},
		{"missing api key", "GATE_API_KEY"},
		{"missing api secret", "GATE_API_SECRET"},
		{"missing domains", "GATE_DIRECTORY_DOMAINS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.unset, "")

			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsNonPositiveDurations(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"zero housekeeping interval", "HOUSEKEEPING_INTERVAL"},
		{"zero shutdown grace period", "SHUTDOWN_GRACE_PERIOD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, "0s")

			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
