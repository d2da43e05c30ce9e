package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/internal/gate/service"
)

type fakeDecisions struct {
	evalReq  service.Request
	evalResp domain.Decision

	beginID   domain.Identity
	beginURL  string
	beginResp domain.Decision

	postID     domain.Identity
	postToken  string
	postDevice string
	postResp   domain.Decision
}

func (f *fakeDecisions) Evaluate(_ context.Context, req service.Request) domain.Decision {
	f.evalReq = req
	return f.evalResp
}

func (f *fakeDecisions) BeginChallenge(_ context.Context, id domain.Identity, postbackURL string) domain.Decision {
	f.beginID, f.beginURL = id, postbackURL
	return f.beginResp
}

func (f *fakeDecisions) CompletePostback(_ context.Context, id domain.Identity, token, deviceID string) domain.Decision {
	f.postID, f.postToken, f.postDevice = id, token, deviceID
	return f.postResp
}

type fakeSidResolver struct {
	upn string
	err error
}

func (f *fakeSidResolver) Resolve(string) (string, error) { return f.upn, f.err }

func newTestRouter(decisions *fakeDecisions, sids domain.SidResolver) *Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(decisions, sids, nil, "test", logger)
	r.ApplyRoutes()
	return r
}

func TestEvaluateEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("static class allows without identity", func(t *testing.T) {
		f := &fakeDecisions{}
		r := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		req.Header.Set(headerRequestClass, "static")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"allow"`)
	})

	t.Run("missing identity is a bad request", func(t *testing.T) {
		r := newTestRouter(&fakeDecisions{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("forwards identity, cookie and device", func(t *testing.T) {
		f := &fakeDecisions{evalResp: domain.Allow("cached_verdict")}
		r := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		req.Header.Set(headerAuthUser, `CORP\Jane.Doe`)
		req.Header.Set(headerDeviceID, "device-1")
		req.AddCookie(&http.Cookie{Name: assertionCookie, Value: "tok"})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "jane.doe", f.evalReq.Identity.CanonicalName)
		require.Equal(t, "tok", f.evalReq.AssertionToken)
		require.Equal(t, "device-1", f.evalReq.DeviceID)
	})

	t.Run("deny uses the decision status code", func(t *testing.T) {
		f := &fakeDecisions{evalResp: domain.Deny(domain.StatusReauthRequired, "cached_deny")}
		r := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		req.Header.Set(headerAuthUser, "jane.doe")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, domain.StatusReauthRequired, rec.Code)
	})

	t.Run("challenge is 401 with redirect", func(t *testing.T) {
		f := &fakeDecisions{evalResp: domain.ChallengeRequired("/mfa/challenge")}
		r := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		req.Header.Set(headerAuthUser, "jane.doe")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "/mfa/challenge")
	})

	t.Run("sid identity resolved through resolver", func(t *testing.T) {
		f := &fakeDecisions{evalResp: domain.Allow("2fa_not_required")}
		r := newTestRouter(f, &fakeSidResolver{upn: "jane.doe@corp.example.com"})

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		req.Header.Set(headerAuthUser, "S-1-5-21-1111-2222-3333-500")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "jane.doe", f.evalReq.Identity.CanonicalName)
		require.Equal(t, domain.UserPrincipalName, f.evalReq.Identity.QueryType)
	})

	t.Run("sid identity without resolver is rejected", func(t *testing.T) {
		r := newTestRouter(&fakeDecisions{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/evaluate", nil)
		req.Header.Set(headerAuthUser, "S-1-5-21-1111-2222-3333-500")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChallengeEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("requires postback url", func(t *testing.T) {
		r := newTestRouter(&fakeDecisions{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/challenge", strings.NewReader(`{}`))
		req.Header.Set(headerAuthUser, "jane.doe")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns the access page url", func(t *testing.T) {
		f := &fakeDecisions{beginResp: domain.ChallengeRequired("https://access.example.com/page/abc")}
		r := newTestRouter(f, nil)

		body := `{"postback_url":"https://mail.example.com/mfa/postback"}`
		req := httptest.NewRequest(http.MethodPost, "/challenge", strings.NewReader(body))
		req.Header.Set(headerAuthUser, "jane.doe")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "https://access.example.com/page/abc")
		require.Equal(t, "https://mail.example.com/mfa/postback", f.beginURL)
	})

	t.Run("registration info renders support contacts", func(t *testing.T) {
		f := &fakeDecisions{beginResp: domain.ShowRegistrationInfo(domain.SupportInfo{
			AdminName: "Help Desk", AdminEmail: "help@example.com",
		})}
		r := newTestRouter(f, nil)

		body := `{"postback_url":"cb"}`
		req := httptest.NewRequest(http.MethodPost, "/challenge", strings.NewReader(body))
		req.Header.Set(headerAuthUser, "jane.doe")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "registration_info")
		require.Contains(t, rec.Body.String(), "help@example.com")
	})
}

func TestPostbackEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("success sets the assertion cookie", func(t *testing.T) {
		f := &fakeDecisions{postResp: domain.Allow("challenge_completed")}
		r := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/postback", strings.NewReader("accessToken=tok123"))
		req.Header.Set(headerAuthUser, "jane.doe")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "tok123", f.postToken)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, assertionCookie, cookies[0].Name)
		require.Equal(t, "tok123", cookies[0].Value)
	})

	t.Run("deny does not set a cookie", func(t *testing.T) {
		f := &fakeDecisions{postResp: domain.Deny(domain.StatusReauthRequired, "invalid_assertion")}
		r := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/postback", strings.NewReader("accessToken=bad"))
		req.Header.Set(headerAuthUser, "jane.doe")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, domain.StatusReauthRequired, rec.Code)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("missing token is a bad request", func(t *testing.T) {
		r := newTestRouter(&fakeDecisions{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/postback", strings.NewReader(""))
		req.Header.Set(headerAuthUser, "jane.doe")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("livez is always ok", func(t *testing.T) {
		r := newTestRouter(&fakeDecisions{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz reflects the dependency check", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		failing := func(context.Context) error { return errors.New("redis down") }
		r := NewRouter(&fakeDecisions{}, nil, failing, "test", logger)
		r.ApplyRoutes()

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), "redis down")
	})
}

func TestRequestClassParsing(t *testing.T) {
	t.Parallel()

	require.Equal(t, domain.ClassStatic, requestClass("static"))
	require.Equal(t, domain.ClassChallengePostback, requestClass("postback"))
	require.Equal(t, domain.ClassNormal, requestClass(""))
	require.Equal(t, domain.ClassNormal, requestClass("anything"))
}
