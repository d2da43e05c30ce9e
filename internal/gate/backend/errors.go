package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies verification API failures. Callers branch on the
// kind; the wire-level message sniffing that produces it stays inside this
// package.
type ErrorKind int

const (
	// KindUnreachable covers transport failures, timeouts and non-2xx
	// responses. It is the only kind that may trigger the bypass policy.
	KindUnreachable ErrorKind = iota

	// KindNotRegistered means the API knows the account has no enrolled
	// second factor.
	KindNotRegistered

	// KindQuotaExceeded means the API refused because the tenant is over
	// its user quota.
	KindQuotaExceeded

	// KindRejected is any other unsuccessful API response.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindNotRegistered:
		return "not_registered"
	case KindQuotaExceeded:
		return "quota_exceeded"
	default:
		return "rejected"
	}
}

// APIError is the typed failure returned by every Client method.
type APIError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("multifactor api %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("multifactor api %s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err carries an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
