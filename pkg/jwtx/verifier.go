package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrAudience   = errors.New("jwtx: audience mismatch")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrNoSubject  = errors.New("jwtx: subject claim missing")
)

// AssertionClaims are the claims the second-factor backend puts into its
// assertion token. The optional rawUserName claim carries the identity
// exactly as the primary auth layer saw it, before any canonicalization.
type AssertionClaims struct {
	jwt.RegisteredClaims

	RawUserName string `json:"rawUserName,omitempty"`
}

// Option tweaks an AssertionVerifier.
type Option func(*AssertionVerifier)

// WithLeeway allows small clock skew when validating exp.
func WithLeeway(d time.Duration) Option {
	return func(v *AssertionVerifier) { v.leeway = d }
}

// WithTimeFunc overrides the clock, mainly for tests.
func WithTimeFunc(now func() time.Time) Option {
	return func(v *AssertionVerifier) { v.now = now }
}

// AssertionVerifier validates an HS256-signed assertion token against the
// shared API secret. The token must carry the API key as its audience, a
// future expiry, and a non-empty subject.
type AssertionVerifier struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewAssertionVerifier builds a verifier keyed by the shared API secret,
// expecting the API key as the audience claim.
func NewAssertionVerifier(apiSecret, apiKey string, opts ...Option) *AssertionVerifier {
	v := &AssertionVerifier{
		secret:   []byte(apiSecret),
		audience: apiKey,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks signature, audience, expiry and subject, and returns the
// asserted identity. The rawUserName claim wins over sub when present so
// the caller can compare against the locally authenticated name exactly.
func (v *AssertionVerifier) Verify(token string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)

	claims := &AssertionClaims{}
	if _, err := parser.ParseWithClaims(token, claims, v.keyFunc); err != nil {
		return "", mapError(err)
	}

	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	if claims.RawUserName != "" {
		return claims.RawUserName, nil
	}
	return claims.Subject, nil
}

// TryVerify is the boolean-gate form of Verify: it never propagates the
// failure, it only reports that no valid assertion was presented.
func (v *AssertionVerifier) TryVerify(token string) (string, bool) {
	identity, err := v.Verify(token)
	if err != nil {
		return "", false
	}
	return identity, true
}

func (v *AssertionVerifier) keyFunc(*jwt.Token) (any, error) {
	return v.secret, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return errors.Join(ErrMalformed, err)
	}
}
