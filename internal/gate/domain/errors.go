package domain

import "errors"

// Component boundaries translate transport failures into these before the
// orchestrator sees them; the orchestrator matches with errors.Is and folds
// everything into a Decision.
var (
	// ErrDirectoryUnavailable covers per-domain LDAP transport or protocol
	// failures. Triggers the fail-open membership policy.
	ErrDirectoryUnavailable = errors.New("domain: directory unavailable")

	// ErrProfileNotFound means every configured domain was searched and none
	// returned an entry for the identity.
	ErrProfileNotFound = errors.New("domain: profile not found")

	// ErrGroupNotFound means the configured 2FA group does not exist. The
	// requirement evaluator resolves this to "required" (fail-open).
	ErrGroupNotFound = errors.New("domain: group not found")
)
