// Package policy decides whether an identity must present a second factor
// and tracks the backend-unreachable bypass window.
package policy

import (
	"context"
	"errors"
	"strings"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/slogx"
)

// DirectoryGateway is the slice of the directory client the evaluator needs.
type DirectoryGateway interface {
	Domains() []string
	ResolveGroupDN(ctx context.Context, dom, groupName string) (string, error)
	IsMember(ctx context.Context, dom string, id domain.Identity, groupDN string) (bool, error)
}

// MembershipCache is the slice of the cache adapter the evaluator needs.
type MembershipCache interface {
	Membership(ctx context.Context, user string) (isMember, found bool)
	SetMembership(ctx context.Context, user string, isMember bool)
	GroupDN(ctx context.Context, group string) (dn string, found bool)
	SetGroupDN(ctx context.Context, group, dn string)
}

// DefaultExemptPrefixes are the built-in Exchange system mailboxes that
// must never be challenged (and never cost a directory round trip).
func DefaultExemptPrefixes() []string {
	return []string{
		"healthmailbox",
		"extest",
		"federatedemail",
		"migration",
		"systemmailbox",
	}
}

// Requirement evaluates whether 2FA applies to an identity. With no group
// configured everyone is challenged. Directory trouble fails open to
// "required": an unreachable directory must never silently disable 2FA.
type Requirement struct {
	gateway        DirectoryGateway
	cache          MembershipCache
	group          string
	exemptPrefixes []string
}

func NewRequirement(gateway DirectoryGateway, cache MembershipCache, group string, exemptPrefixes []string) *Requirement {
	lowered := make([]string, 0, len(exemptPrefixes))
	for _, p := range exemptPrefixes {
		lowered = append(lowered, strings.ToLower(p))
	}
	return &Requirement{
		gateway:        gateway,
		cache:          cache,
		group:          group,
		exemptPrefixes: lowered,
	}
}

// IsExempt reports whether the identity matches a system-account prefix.
// Checked before any cache or directory access.
func (r *Requirement) IsExempt(id domain.Identity) bool {
	for _, prefix := range r.exemptPrefixes {
		if strings.HasPrefix(id.CanonicalName, prefix) {
			return true
		}
	}
	return false
}

// IsRequired reports whether the identity must be challenged.
func (r *Requirement) IsRequired(ctx context.Context, id domain.Identity) bool {
	if r.IsExempt(id) {
		return false
	}
	if r.group == "" {
		return true
	}

	if isMember, found := r.cache.Membership(ctx, id.CanonicalName); found {
		return isMember
	}

	isMember, cacheable := r.lookupMembership(ctx, id)
	if cacheable {
		r.cache.SetMembership(ctx, id.CanonicalName, isMember)
	}
	return isMember
}

// lookupMembership resolves the group DN and runs the transitive membership
// search, domain by domain. The second return reports whether the verdict
// is definitive enough to cache: transport failures fail open but stay
// uncached so recovery is immediate.
func (r *Requirement) lookupMembership(ctx context.Context, id domain.Identity) (isMember, cacheable bool) {
	log := slogx.FromContext(ctx)

	errored := false
	for _, dom := range r.gateway.Domains() {
		groupDN, found := r.cache.GroupDN(ctx, r.group)
		if !found {
			dn, err := r.gateway.ResolveGroupDN(ctx, dom, r.group)
			switch {
			case errors.Is(err, domain.ErrGroupNotFound):
				// Group not existing resolves to "required" and is cached:
				// a misconfigured group name must not disable 2FA.
				log.Warn("policy: configured 2fa group does not exist, requiring 2fa for everyone",
					"group", r.group, "domain", dom)
				return true, true
			case err != nil:
				log.Warn("policy: group dn resolution failed, trying next domain",
					"group", r.group, "domain", dom, "err", err)
				errored = true
				continue
			}
			groupDN = dn
			r.cache.SetGroupDN(ctx, r.group, groupDN)
		}

		member, err := r.gateway.IsMember(ctx, dom, id, groupDN)
		if err != nil {
			log.Warn("policy: membership search failed, trying next domain",
				"user", id.CanonicalName, "domain", dom, "err", err)
			errored = true
			continue
		}
		if member {
			return true, true
		}
	}

	if errored || len(r.gateway.Domains()) == 0 {
		// A miss is only trustworthy after a clean sweep of every domain.
		return true, false
	}
	return false, true
}
