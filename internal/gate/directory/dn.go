package directory

import "strings"

// BaseDN converts a DNS-form domain name into its LDAP distinguished-name
// form: "corp.example.com" -> "DC=corp,DC=example,DC=com". A :port suffix
// is stripped first.
func BaseDN(domain string) string {
	name := domain
	if i := strings.Index(name, ":"); i > 0 {
		name = name[:i]
	}

	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '.' })
	dcs := make([]string, 0, len(parts))
	for _, p := range parts {
		dcs = append(dcs, "DC="+p)
	}
	return strings.Join(dcs, ",")
}
