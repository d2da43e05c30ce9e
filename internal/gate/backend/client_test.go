package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:   baseURL,
		APIKey:    "key",
		APISecret: "secret",
		TraceID:   func() string { return "gate-test-trace" },
	})
	require.NoError(t, err)
	return c
}

func TestCreateAccessRequest(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	gotHeaders := http.Header{}
	var gotBody accessRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(webResponse{
			Success: true,
			Model:   accessPageBody{URL: "https://access.example.com/page/abc"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	url, err := c.CreateAccessRequest(context.Background(), AccessRequest{
		Identity:    "jane.2fa@corp.example.com",
		RawUserName: `CORP\Jane.Doe`,
		PostbackURL: "https://mail.example.com/mfa/postback",
		Phone:       "+61400000000",
	})
	require.NoError(t, err)
	require.Equal(t, "https://access.example.com/page/abc", url)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/access/requests", gotPath)
	// base64("key:secret")
	require.Equal(t, "Basic a2V5OnNlY3JldA==", gotHeaders.Get("Authorization"))
	require.Equal(t, "gate-test-trace", gotHeaders.Get("mf-trace-id"))

	require.Equal(t, "jane.2fa@corp.example.com", gotBody.Identity)
	require.Equal(t, "+61400000000", gotBody.UserPhone)
	require.Equal(t, "https://mail.example.com/mfa/postback", gotBody.Callback.Action)
	require.Equal(t, "_self", gotBody.Callback.Target)
	require.Equal(t, `CORP\Jane.Doe`, gotBody.Claims["rawUserName"])
}

func TestCreateAccessRequestClassifiesRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		message string
		want    ErrorKind
	}{
		{"not registered", "UserNotRegistered: jane.doe", KindNotRegistered},
		{"quota", "Users quota exceeded", KindQuotaExceeded},
		{"other", "request denied by policy", KindRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(webResponse{Success: false, Message: tc.message})
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).CreateAccessRequest(context.Background(), AccessRequest{Identity: "jane.doe"})
			require.Error(t, err)
			require.True(t, IsKind(err, tc.want), "want kind %s, got %v", tc.want, err)
		})
	}
}

func TestCreateAccessRequestUnreachable(t *testing.T) {
	t.Parallel()

	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).CreateAccessRequest(context.Background(), AccessRequest{Identity: "jane.doe"})
		require.True(t, IsKind(err, KindUnreachable), "got %v", err)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // nothing is listening anymore

		_, err := newTestClient(t, srv.URL).CreateAccessRequest(context.Background(), AccessRequest{Identity: "jane.doe"})
		require.True(t, IsKind(err, KindUnreachable), "got %v", err)
	})
}

func TestSupportInfo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/self-service/support-info", r.URL.Path)
		require.Equal(t, "Basic a2V5OnNlY3JldA==", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(supportInfoBody{
			AdminName:  "Help Desk",
			AdminEmail: "help@example.com",
			AdminPhone: "+61212345678",
		})
	}))
	defer srv.Close()

	info, err := newTestClient(t, srv.URL).SupportInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Help Desk", info.AdminName)
	require.Equal(t, "help@example.com", info.AdminEmail)
	require.Equal(t, "+61212345678", info.AdminPhone)
	require.False(t, info.IsZero())
}
