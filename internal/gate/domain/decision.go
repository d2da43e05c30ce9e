package domain

// RequestClass is how the web-integration boundary classified the inbound
// request shape. The core never inspects URLs itself.
type RequestClass int

const (
	// ClassNormal is an ordinary navigation or API call.
	ClassNormal RequestClass = iota
	// ClassStatic is a static-resource request; always exempt.
	ClassStatic
	// ClassChallengePostback is the return leg from the challenge page.
	ClassChallengePostback
)

// DecisionKind is the terminal state of one evaluation.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionDeny
	DecisionChallengeRequired
	DecisionShowRegistrationInfo
)

// StatusReauthRequired is the non-standard status understood by Exchange
// clients as "refresh your authentication".
const StatusReauthRequired = 440

// Decision is what every evaluation path terminates in. The orchestrator
// never returns an error to the boundary; failures are folded into a
// Decision (fail-open or deny, depending on the failing dependency).
type Decision struct {
	Kind DecisionKind

	// StatusCode accompanies DecisionDeny (e.g. 440 for XHR clients).
	StatusCode int

	// RedirectURL accompanies DecisionChallengeRequired: either the local
	// challenge page or the backend access page URL.
	RedirectURL string

	// Support accompanies DecisionShowRegistrationInfo.
	Support SupportInfo

	// Bypassed marks an Allow granted by the unreachable-bypass policy
	// rather than a satisfied challenge.
	Bypassed bool

	// Reason is a short machine-friendly label for logs.
	Reason string
}

func Allow(reason string) Decision {
	return Decision{Kind: DecisionAllow, Reason: reason}
}

func AllowBypassed(reason string) Decision {
	return Decision{Kind: DecisionAllow, Bypassed: true, Reason: reason}
}

func Deny(statusCode int, reason string) Decision {
	return Decision{Kind: DecisionDeny, StatusCode: statusCode, Reason: reason}
}

func ChallengeRequired(redirectURL string) Decision {
	return Decision{Kind: DecisionChallengeRequired, RedirectURL: redirectURL, Reason: "challenge_required"}
}

func ShowRegistrationInfo(support SupportInfo) Decision {
	return Decision{Kind: DecisionShowRegistrationInfo, Support: support, Reason: "not_registered"}
}
