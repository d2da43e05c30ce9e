package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidIdentity = errors.New("domain: invalid identity")

	// ErrSIDIdentity reports a raw SID-form name (S-1-5-21...). The gate never
	// resolves SIDs itself; the boundary must translate them to a UPN first
	// via a SidResolver.
	ErrSIDIdentity = errors.New("domain: SID identity requires resolution")
)

const sidPrefix = "s-1-5-21"

// QueryType is the directory attribute family the identity should be
// searched by.
type QueryType int

const (
	SamAccountName QueryType = iota
	UserPrincipalName
	Name
)

// AttributeName maps the query type to its directory attribute.
func (t QueryType) AttributeName() string {
	switch t {
	case SamAccountName:
		return "sAMAccountName"
	case UserPrincipalName:
		return "userPrincipalName"
	default:
		return "name"
	}
}

// Identity is a principal as received from the primary authentication layer.
// RawName is kept verbatim because the second-factor backend echoes it back
// in its claims and the comparison must be exact.
type Identity struct {
	RawName       string
	CanonicalName string
	QueryType     QueryType
	NetBIOSDomain string // "corp" from "CORP\jane", empty otherwise
}

// SidResolver translates a SID-form principal into a UPN. Implemented by the
// web-integration boundary, which has access to the wrapped identity.
type SidResolver interface {
	Resolve(sid string) (upn string, err error)
}

// Canonicalize lowercases raw and strips a DOMAIN\ prefix or an @domain
// suffix, producing the stable cache and comparison key. It is idempotent.
func Canonicalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrInvalidIdentity
	}

	name := strings.ToLower(raw)
	if i := strings.Index(name, `\`); i > 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i]
	}
	return name, nil
}

// ParseIdentity builds an Identity from a raw principal name. UPN-form names
// (containing @) are searched by userPrincipalName, everything else by
// sAMAccountName. SID-form names are rejected; callers resolve those first.
func ParseIdentity(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, ErrInvalidIdentity
	}
	if strings.HasPrefix(strings.ToLower(raw), sidPrefix) {
		return Identity{}, ErrSIDIdentity
	}

	lowered := strings.ToLower(raw)
	id := Identity{
		RawName:   raw,
		QueryType: SamAccountName,
	}

	name := lowered
	if i := strings.Index(name, `\`); i > 0 {
		id.NetBIOSDomain = name[:i]
		name = name[i+1:]
	}
	if strings.Contains(name, "@") {
		id.QueryType = UserPrincipalName
	}
	id.CanonicalName = name
	if i := strings.Index(id.CanonicalName, "@"); i > 0 {
		id.CanonicalName = id.CanonicalName[:i]
	}

	return id, nil
}

// SearchName is the value to match against AttributeName() in directory
// filters. UPN searches keep the @domain suffix, SAM searches do not.
func (id Identity) SearchName() string {
	if id.QueryType == UserPrincipalName {
		name := strings.ToLower(id.RawName)
		if i := strings.Index(name, `\`); i > 0 {
			name = name[i+1:]
		}
		return name
	}
	return id.CanonicalName
}
