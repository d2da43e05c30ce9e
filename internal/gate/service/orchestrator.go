// Package service runs the access decision state machine: given a primary
// authenticated identity, it decides between letting the request through,
// denying it, sending the user to the second-factor challenge, or showing
// enrollment contacts.
package service

import (
	"context"

	"github.com/ironbark/mfagate/internal/gate/backend"
	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/keylock"
	"github.com/ironbark/mfagate/pkg/slogx"
)

// DecisionCache is the slice of the cache adapter the orchestrator needs.
type DecisionCache interface {
	Verdict(ctx context.Context, user, device string) (allowed, found bool)
	SetAllowVerdict(ctx context.Context, user, device string)
	SetDenyVerdict(ctx context.Context, user, device string)
	Profile(ctx context.Context, user string) (domain.Profile, bool)
	SetProfile(ctx context.Context, user string, p domain.Profile)
	SupportInfo(ctx context.Context, user string) (domain.SupportInfo, bool)
	SetSupportInfo(ctx context.Context, user string, info domain.SupportInfo)
	PendingChallenge(ctx context.Context, user string) (string, bool)
	SetPendingChallenge(ctx context.Context, user, url string)
	ClearPendingChallenge(ctx context.Context, user string)
}

// RequirementEvaluator decides whether 2FA applies to an identity at all.
type RequirementEvaluator interface {
	IsRequired(ctx context.Context, id domain.Identity) bool
}

// BypassPolicy tracks the backend-unreachable bypass window.
type BypassPolicy interface {
	Enabled() bool
	Should(ctx context.Context, user string) bool
	RecordUnreachable(ctx context.Context, user string)
}

// AssertionVerifier validates a signed challenge assertion and returns the
// identity it vouches for.
type AssertionVerifier interface {
	Verify(token string) (string, error)
}

// AccessAPI is the verification backend surface the orchestrator calls.
type AccessAPI interface {
	CreateAccessRequest(ctx context.Context, req backend.AccessRequest) (string, error)
	SupportInfo(ctx context.Context) (domain.SupportInfo, error)
}

// ProfileFinder loads directory profiles.
type ProfileFinder interface {
	FindProfile(ctx context.Context, id domain.Identity) (domain.Profile, error)
}

// ProductPolicy carries the per-product knobs: where the local challenge
// page lives and which status script clients get on deny. One orchestrator
// serves every product; only this value differs between them.
type ProductPolicy struct {
	ChallengePath  string
	DenyStatusCode int
}

func DefaultProductPolicy() ProductPolicy {
	return ProductPolicy{
		ChallengePath:  "/mfa/challenge",
		DenyStatusCode: domain.StatusReauthRequired,
	}
}

// Request is one evaluation input, assembled by the web boundary.
type Request struct {
	Identity domain.Identity

	// AssertionToken is a previously issued challenge assertion travelling
	// with the request (cookie), if any.
	AssertionToken string

	Class domain.RequestClass

	// DeviceID scopes the verdict for products that authenticate per
	// device rather than per session.
	DeviceID string
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Cache       DecisionCache
	Requirement RequirementEvaluator
	Bypass      BypassPolicy
	Verifier    AssertionVerifier
	API         AccessAPI
	Profiles    ProfileFinder
}

// Orchestrator implements the decision state machine. All cache
// read/decide/write sequences for one identity run under a per-identity
// lock so concurrent requests cannot race a challenge into existence twice.
type Orchestrator struct {
	product ProductPolicy
	locks   *keylock.KeyLock

	cache       DecisionCache
	requirement RequirementEvaluator
	bypass      BypassPolicy
	verifier    AssertionVerifier
	api         AccessAPI
	profiles    ProfileFinder
}

func NewOrchestrator(product ProductPolicy, deps Deps) *Orchestrator {
	return &Orchestrator{
		product:     product,
		locks:       keylock.New(),
		cache:       deps.Cache,
		requirement: deps.Requirement,
		bypass:      deps.Bypass,
		verifier:    deps.Verifier,
		api:         deps.API,
		profiles:    deps.Profiles,
	}
}

// Evaluate runs the decision ladder for one request. The order is fixed:
// static exemption, requirement check, cached verdict (a cached deny beats
// everything that follows, including a valid assertion), presented
// assertion, bypass window, and finally the challenge redirect.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) domain.Decision {
	if req.Class == domain.ClassStatic {
		return domain.Allow("static_resource")
	}

	id := req.Identity
	ctx = slogx.WithUser(ctx, id.CanonicalName)

	unlock := o.locks.Lock(id.CanonicalName)
	defer unlock()

	if !o.requirement.IsRequired(ctx, id) {
		return domain.Allow("2fa_not_required")
	}

	if allowed, found := o.cache.Verdict(ctx, id.CanonicalName, req.DeviceID); found {
		if !allowed {
			return domain.Deny(o.product.DenyStatusCode, "cached_deny")
		}
		return domain.Allow("cached_verdict")
	}

	if req.AssertionToken != "" {
		if subject, err := o.verifier.Verify(req.AssertionToken); err == nil && matchesIdentity(id, subject) {
			return domain.Allow("valid_assertion")
		}
	}

	if o.bypass.Should(ctx, id.CanonicalName) {
		slogx.FromContext(ctx).Warn("service: allowing via unreachable-bypass window")
		return domain.AllowBypassed("api_unreachable_bypass")
	}

	// A challenge already issued for this identity stays the one challenge:
	// redirect to its access page instead of the local challenge entry point.
	if url, ok := o.cache.PendingChallenge(ctx, id.CanonicalName); ok {
		return domain.ChallengeRequired(url)
	}

	return domain.ChallengeRequired(o.product.ChallengePath)
}

// BeginChallenge asks the backend for a challenge page for the identity and
// folds every API failure mode into a decision.
func (o *Orchestrator) BeginChallenge(ctx context.Context, id domain.Identity, postbackURL string) domain.Decision {
	ctx = slogx.WithUser(ctx, id.CanonicalName)
	log := slogx.FromContext(ctx)

	unlock := o.locks.Lock(id.CanonicalName)
	defer unlock()

	// One in-flight challenge per identity: a second begin while the first
	// is unanswered rides the same access page instead of issuing another.
	if url, ok := o.cache.PendingChallenge(ctx, id.CanonicalName); ok {
		return domain.ChallengeRequired(url)
	}

	profile := o.loadProfile(ctx, id)

	secondFactorIdentity := profile.SecondFactorIdentity
	if secondFactorIdentity == "" {
		secondFactorIdentity = id.CanonicalName
	}

	url, err := o.api.CreateAccessRequest(ctx, backend.AccessRequest{
		Identity:    secondFactorIdentity,
		RawUserName: id.RawName,
		PostbackURL: postbackURL,
		Phone:       profile.Phone,
	})
	if err == nil {
		o.cache.SetPendingChallenge(ctx, id.CanonicalName, url)
		return domain.ChallengeRequired(url)
	}

	switch {
	case backend.IsKind(err, backend.KindUnreachable):
		o.bypass.RecordUnreachable(ctx, id.CanonicalName)
		if o.bypass.Enabled() {
			return domain.AllowBypassed("api_unreachable_bypass")
		}
		log.Error("service: backend unreachable and bypass disabled, denying", "err", err)
		return domain.Deny(o.product.DenyStatusCode, "api_unreachable")

	case backend.IsKind(err, backend.KindNotRegistered):
		return domain.ShowRegistrationInfo(o.supportInfo(ctx, id.CanonicalName))

	case backend.IsKind(err, backend.KindQuotaExceeded):
		log.Error("service: tenant user quota exceeded, denying", "err", err)
		return domain.Deny(o.product.DenyStatusCode, "quota_exceeded")

	default:
		log.Error("service: backend rejected access request, denying", "err", err)
		return domain.Deny(o.product.DenyStatusCode, "request_rejected")
	}
}

// CompletePostback consumes the assertion returned by the challenge page.
// Valid and matching writes the short allow verdict; anything else writes
// the deny verdict so immediate retries stay denied.
func (o *Orchestrator) CompletePostback(ctx context.Context, id domain.Identity, token, deviceID string) domain.Decision {
	ctx = slogx.WithUser(ctx, id.CanonicalName)

	unlock := o.locks.Lock(id.CanonicalName)
	defer unlock()

	subject, err := o.verifier.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Warn("service: postback assertion invalid", "err", err)
		o.cache.SetDenyVerdict(ctx, id.CanonicalName, deviceID)
		return domain.Deny(o.product.DenyStatusCode, "invalid_assertion")
	}
	if !matchesIdentity(id, subject) {
		slogx.FromContext(ctx).Warn("service: postback assertion identity mismatch", "subject", subject)
		o.cache.SetDenyVerdict(ctx, id.CanonicalName, deviceID)
		return domain.Deny(o.product.DenyStatusCode, "identity_mismatch")
	}

	o.cache.ClearPendingChallenge(ctx, id.CanonicalName)
	o.cache.SetAllowVerdict(ctx, id.CanonicalName, deviceID)
	return domain.Allow("challenge_completed")
}

// loadProfile is cache-first and never fails the challenge: a missing or
// unreachable directory just means no phone and no identity override.
func (o *Orchestrator) loadProfile(ctx context.Context, id domain.Identity) domain.Profile {
	if p, ok := o.cache.Profile(ctx, id.CanonicalName); ok {
		return p
	}

	p, err := o.profiles.FindProfile(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).Warn("service: proceeding without directory profile", "err", err)
		return domain.Profile{Identity: id}
	}
	o.cache.SetProfile(ctx, id.CanonicalName, p)
	return p
}

// supportInfo is cache-first; a failed fetch yields zero contacts rather
// than an error, the registration page just renders without them.
func (o *Orchestrator) supportInfo(ctx context.Context, user string) domain.SupportInfo {
	if info, ok := o.cache.SupportInfo(ctx, user); ok {
		return info
	}

	info, err := o.api.SupportInfo(ctx)
	if err != nil {
		slogx.FromContext(ctx).Warn("service: support info unavailable", "err", err)
		return domain.SupportInfo{}
	}
	o.cache.SetSupportInfo(ctx, user, info)
	return info
}

// matchesIdentity accepts the assertion subject in either the exact raw
// form the request arrived with or any form that canonicalizes to the same
// name.
func matchesIdentity(id domain.Identity, subject string) bool {
	if subject == id.RawName {
		return true
	}
	canonical, err := domain.Canonicalize(subject)
	if err != nil {
		return false
	}
	return canonical == id.CanonicalName
}
