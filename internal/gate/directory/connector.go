package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Entry is one directory search hit.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Conn is an established, bound directory connection.
type Conn interface {
	Search(ctx context.Context, baseDN, filter string, attributes []string) ([]Entry, error)
	Close() error
}

// Connector dials one directory domain. Production uses LDAPConnector;
// tests substitute fakes.
type Connector interface {
	Connect(ctx context.Context, domain string) (Conn, error)
}

// LDAPConnector dials a domain controller over LDAP and binds with the
// configured service credentials, or anonymously when none are set.
type LDAPConnector struct {
	BindDN       string
	BindPassword string
	Timeout      time.Duration
}

func (c *LDAPConnector) Connect(ctx context.Context, domain string) (Conn, error) {
	url := domain
	if !strings.Contains(url, "://") {
		url = "ldap://" + url
	}

	conn, err := ldap.DialURL(url)
	if err != nil {
		return nil, fmt.Errorf("directory: dial %s: %w", domain, err)
	}
	if c.Timeout > 0 {
		conn.SetTimeout(c.Timeout)
	}

	if c.BindDN != "" {
		err = conn.Bind(c.BindDN, c.BindPassword)
	} else {
		err = conn.UnauthenticatedBind("")
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("directory: bind to %s: %w", domain, err)
	}

	return &ldapConn{conn: conn, timeout: c.Timeout}, nil
}

type ldapConn struct {
	conn    *ldap.Conn
	timeout time.Duration
}

func (c *ldapConn) Search(_ context.Context, baseDN, filter string, attributes []string) ([]Entry, error) {
	timeLimit := 0
	if c.timeout > 0 {
		timeLimit = int(c.timeout / time.Second)
	}

	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // no size limit
		timeLimit,
		false,
		filter,
		attributes,
		nil,
	)

	res, err := c.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("directory: search %q under %q: %w", filter, baseDN, err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		attrs := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs[a.Name] = a.Values
		}
		entries = append(entries, Entry{DN: e.DN, Attributes: attrs})
	}
	return entries, nil
}

func (c *ldapConn) Close() error {
	return c.conn.Close()
}
