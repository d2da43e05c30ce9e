// Package http is the reference web boundary for the gate: a small
// forward-auth style API that products put in front of their request
// pipeline. It translates headers and cookies into decision requests and
// decisions back into status codes.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/internal/gate/service"
	"github.com/ironbark/mfagate/pkg/httpx"
	"github.com/ironbark/mfagate/pkg/slogx"
)

const (
	headerAuthUser     = "X-Auth-User"
	headerRequestClass = "X-Request-Class"
	headerDeviceID     = "X-Device-Id"

	// assertionCookie carries the challenge assertion between requests.
	assertionCookie = "multifactor"
)

// DecisionService is the orchestrator surface the handlers call.
type DecisionService interface {
	Evaluate(ctx context.Context, req service.Request) domain.Decision
	BeginChallenge(ctx context.Context, id domain.Identity, postbackURL string) domain.Decision
	CompletePostback(ctx context.Context, id domain.Identity, token, deviceID string) domain.Decision
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	decisions    DecisionService
	sids         domain.SidResolver
	ready        func(ctx context.Context) error
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

// NewRouter builds the router. sids may be nil when the deployment never
// sees SID-form principals; ready may be nil when there is no external
// dependency to probe.
func NewRouter(
	decisions DecisionService,
	sids domain.SidResolver,
	ready func(ctx context.Context) error,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		decisions:    decisions,
		sids:         sids,
		ready:        ready,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerDecisions()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerDecisions() {
	evaluate := &EvaluateHandler{Decisions: r.decisions, Sids: r.sids}
	r.Mux.Handle("POST /evaluate",
		httpx.Chain(evaluate,
			httpx.RateLimitMiddleware(httpx.LenientLimit, httpx.HeaderKeyExtractor(headerAuthUser)),
		),
	)

	challenge := &ChallengeHandler{Decisions: r.decisions, Sids: r.sids}
	r.Mux.Handle("POST /challenge",
		httpx.Chain(challenge,
			httpx.RateLimitMiddleware(httpx.StrictLimit, httpx.HeaderKeyExtractor(headerAuthUser)),
		),
	)

	// Postback arrives from the user's browser; limit by IP to slow down
	// assertion guessing.
	postback := &PostbackHandler{Decisions: r.decisions, Sids: r.sids}
	r.Mux.Handle("POST /postback",
		httpx.Chain(postback,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.ready),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
