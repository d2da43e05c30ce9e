package http

import (
	"net/http"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/internal/gate/service"
)

// EvaluateHandler answers the forward-auth question: may this request
// proceed as-is, or does it need a challenge first?
type EvaluateHandler struct {
	Decisions DecisionService
	Sids      domain.SidResolver
}

func (h *EvaluateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	class := requestClass(r.Header.Get(headerRequestClass))
	if class == domain.ClassStatic {
		// Static resources never need an identity.
		writeDecision(w, domain.Allow("static_resource"))
		return
	}

	id, err := resolveIdentity(h.Sids, r.Header.Get(headerAuthUser))
	if err != nil {
		writeBadIdentity(w)
		return
	}

	var token string
	if c, err := r.Cookie(assertionCookie); err == nil {
		token = c.Value
	}

	d := h.Decisions.Evaluate(r.Context(), service.Request{
		Identity:       id,
		AssertionToken: token,
		Class:          class,
		DeviceID:       r.Header.Get(headerDeviceID),
	})
	writeDecision(w, d)
}

func requestClass(v string) domain.RequestClass {
	switch v {
	case "static":
		return domain.ClassStatic
	case "postback":
		return domain.ClassChallengePostback
	default:
		return domain.ClassNormal
	}
}
