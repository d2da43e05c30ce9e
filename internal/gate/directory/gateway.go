package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/sync/semaphore"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/slogx"
)

// transitiveMemberOf is the matching-rule OID that makes the server walk
// nested group membership (LDAP_MATCHING_RULE_IN_CHAIN).
const transitiveMemberOf = "memberOf:1.2.840.113556.1.4.1941:"

const defaultMaxQueries = 8

// Config carries the directory-facing configuration slice the gateway needs.
type Config struct {
	// Domains are tried in declaration order; one domain failing never
	// aborts the whole lookup.
	Domains []string

	// PhoneAttributes are probed in order; the first present wins.
	PhoneAttributes []string

	// IdentityAttribute optionally names an attribute whose value replaces
	// the canonical name as the second-factor identity.
	IdentityAttribute string

	// MaxQueries caps concurrent searches across all requests.
	MaxQueries int64
}

// Gateway executes bind+search operations against the configured domains.
// All transport and protocol failures come back wrapped in
// domain.ErrDirectoryUnavailable so callers can apply the fail-open policy
// with a single errors.Is.
type Gateway struct {
	connector Connector
	cfg       Config
	sem       *semaphore.Weighted
}

func NewGateway(connector Connector, cfg Config) *Gateway {
	max := cfg.MaxQueries
	if max <= 0 {
		max = defaultMaxQueries
	}
	return &Gateway{
		connector: connector,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(max),
	}
}

// Domains exposes the configured domain order for callers that iterate
// per-domain themselves (group DN resolution + membership).
func (g *Gateway) Domains() []string {
	return g.cfg.Domains
}

// FindProfile searches each configured domain in order and returns the
// first profile found. Per-domain errors are logged and skipped; only full
// exhaustion yields domain.ErrProfileNotFound.
func (g *Gateway) FindProfile(ctx context.Context, id domain.Identity) (domain.Profile, error) {
	log := slogx.FromContext(ctx)

	attrs := make([]string, 0, len(g.cfg.PhoneAttributes)+1)
	attrs = append(attrs, g.cfg.PhoneAttributes...)
	if g.cfg.IdentityAttribute != "" {
		attrs = append(attrs, g.cfg.IdentityAttribute)
	}

	filter := fmt.Sprintf("(&(%s=%s)(objectClass=user))",
		id.QueryType.AttributeName(), ldap.EscapeFilter(id.SearchName()))

	for _, dom := range g.cfg.Domains {
		entries, err := g.search(ctx, dom, BaseDN(dom), filter, attrs)
		if err != nil {
			log.Warn("directory: profile lookup failed, trying next domain",
				"domain", dom, "user", id.CanonicalName, "err", err)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		log.Info("directory: profile loaded", "domain", dom, "user", id.CanonicalName)
		return g.buildProfile(id, entries[0]), nil
	}

	return domain.Profile{}, domain.ErrProfileNotFound
}

// ResolveGroupDN finds the distinguished name of a group by name within one
// domain. Missing group yields domain.ErrGroupNotFound.
func (g *Gateway) ResolveGroupDN(ctx context.Context, dom, groupName string) (string, error) {
	filter := fmt.Sprintf("(&(objectCategory=group)(name=%s))", ldap.EscapeFilter(groupName))

	entries, err := g.search(ctx, dom, BaseDN(dom), filter, []string{"distinguishedName"})
	if err != nil {
		return "", fmt.Errorf("%w: resolving group %q in %s: %w", domain.ErrDirectoryUnavailable, groupName, dom, err)
	}
	if len(entries) == 0 {
		return "", domain.ErrGroupNotFound
	}

	slogx.FromContext(ctx).Info("directory: group resolved", "group", groupName, "dn", entries[0].DN)
	return entries[0].DN, nil
}

// IsMember reports whether the identity is a direct or nested member of the
// group, using the server-side transitive membership walk.
func (g *Gateway) IsMember(ctx context.Context, dom string, id domain.Identity, groupDN string) (bool, error) {
	filter := fmt.Sprintf("(&(%s=%s)(%s=%s))",
		id.QueryType.AttributeName(), ldap.EscapeFilter(id.SearchName()),
		transitiveMemberOf, ldap.EscapeFilter(groupDN))

	entries, err := g.search(ctx, dom, BaseDN(dom), filter, []string{"distinguishedName"})
	if err != nil {
		return false, fmt.Errorf("%w: membership search in %s: %w", domain.ErrDirectoryUnavailable, dom, err)
	}
	return len(entries) > 0, nil
}

func (g *Gateway) search(ctx context.Context, dom, baseDN, filter string, attrs []string) ([]Entry, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	conn, err := g.connector.Connect(ctx, dom)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.Search(ctx, baseDN, filter, attrs)
}

func (g *Gateway) buildProfile(id domain.Identity, entry Entry) domain.Profile {
	p := domain.Profile{
		Identity:   id,
		Attributes: entry.Attributes,
	}

	for _, attr := range g.cfg.PhoneAttributes {
		if val := firstValue(entry.Attributes, attr); val != "" {
			p.Phone = val
			break
		}
	}
	if g.cfg.IdentityAttribute != "" {
		p.SecondFactorIdentity = firstValue(entry.Attributes, g.cfg.IdentityAttribute)
	}
	return p
}

// firstValue does a case-insensitive attribute lookup; servers are not
// consistent about attribute name casing.
func firstValue(attrs map[string][]string, name string) string {
	for key, vals := range attrs {
		if strings.EqualFold(key, name) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
