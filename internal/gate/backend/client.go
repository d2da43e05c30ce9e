// Package backend talks to the MultiFactor verification API: it creates
// access requests (challenge pages) and fetches tenant support contacts.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/slogx"
	"github.com/ironbark/mfagate/pkg/tracex"
)

const rawUserNameClaim = "rawUserName"

const defaultTimeout = 10 * time.Second

// Config carries the API-facing configuration slice the client needs.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string

	// ProxyURL optionally routes API traffic through an HTTP proxy.
	ProxyURL string

	// Timeout bounds each API call end to end.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound API calls; zero means no limit.
	RequestsPerSecond float64

	// TraceID mints the mf-trace-id header value per call.
	TraceID func() string
}

// Client is the verification API client. Every failure comes back as an
// *APIError so callers can branch on the kind without parsing messages.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	limiter    *rate.Limiter
	traceID    func() string
}

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("backend: invalid proxy url %q: %w", cfg.ProxyURL, err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	traceID := cfg.TraceID
	if traceID == nil {
		traceID = tracex.Factory("api")
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		limiter:    limiter,
		traceID:    traceID,
	}, nil
}

// CreateAccessRequest asks the API for a challenge page and returns its URL.
func (c *Client) CreateAccessRequest(ctx context.Context, req AccessRequest) (string, error) {
	body := accessRequestBody{
		Identity:  req.Identity,
		UserPhone: req.Phone,
		Callback: callbackBody{
			Action: req.PostbackURL,
			Target: "_self",
		},
		Claims: map[string]string{rawUserNameClaim: req.RawUserName},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &APIError{Kind: KindRejected, Message: "encoding access request", Err: err}
	}

	slogx.FromContext(ctx).Info("backend: creating access request", "identity", req.Identity)

	respBody, err := c.do(ctx, http.MethodPost, "/access/requests", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var resp webResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", &APIError{Kind: KindRejected, Message: "malformed api response", Err: err}
	}
	if !resp.Success {
		return "", classifyRejection(resp.Message)
	}

	slogx.FromContext(ctx).Info("backend: access request created",
		"identity", req.Identity, "url", resp.Model.URL)
	return resp.Model.URL, nil
}

// SupportInfo fetches the tenant's admin contact details, shown to users
// who have no enrolled second factor.
func (c *Client) SupportInfo(ctx context.Context) (domain.SupportInfo, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/self-service/support-info", nil)
	if err != nil {
		return domain.SupportInfo{}, err
	}

	var body supportInfoBody
	if err := json.Unmarshal(respBody, &body); err != nil {
		return domain.SupportInfo{}, &APIError{Kind: KindRejected, Message: "malformed support-info response", Err: err}
	}
	return domain.SupportInfo{
		AdminName:  body.AdminName,
		AdminEmail: body.AdminEmail,
		AdminPhone: body.AdminPhone,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Kind: KindUnreachable, Message: "rate limit wait aborted", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &APIError{Kind: KindRejected, Message: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.basicAuth())
	req.Header.Set("mf-trace-id", c.traceID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Kind:    KindUnreachable,
			Message: fmt.Sprintf("api host unreachable: %s", c.baseURL),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindUnreachable, Message: "reading api response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Kind:    KindUnreachable,
			Message: fmt.Sprintf("api returned status %d", resp.StatusCode),
		}
	}
	return respBody, nil
}

func (c *Client) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.apiSecret))
}

// classifyRejection maps the API's unsuccessful-response messages to typed
// kinds. This is the only place wire messages are inspected.
func classifyRejection(message string) *APIError {
	switch {
	case strings.Contains(message, "UserNotRegistered"):
		return &APIError{Kind: KindNotRegistered, Message: message}
	case strings.Contains(message, "Users quota exceeded"):
		return &APIError{Kind: KindQuotaExceeded, Message: message}
	default:
		return &APIError{Kind: KindRejected, Message: message}
	}
}
