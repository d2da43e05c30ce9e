package http

import (
	"errors"
	"net/http"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/httpx"
)

type decisionResponse struct {
	Decision    string              `json:"decision"`
	Reason      string              `json:"reason,omitempty"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Bypassed    bool                `json:"bypassed,omitempty"`
	Support     *domain.SupportInfo `json:"support,omitempty"`
}

// writeDecision renders a decision. Challenge comes back as 401 with the
// redirect target in the body; the calling product turns that into its own
// redirect. Deny uses the status the orchestrator chose (440 for mail
// clients).
func writeDecision(w http.ResponseWriter, d domain.Decision) {
	switch d.Kind {
	case domain.DecisionAllow:
		httpx.WriteJSON(w, http.StatusOK, decisionResponse{
			Decision: "allow",
			Reason:   d.Reason,
			Bypassed: d.Bypassed,
		})

	case domain.DecisionDeny:
		code := d.StatusCode
		if code == 0 {
			code = http.StatusUnauthorized
		}
		httpx.WriteJSON(w, code, decisionResponse{
			Decision: "deny",
			Reason:   d.Reason,
		})

	case domain.DecisionChallengeRequired:
		httpx.WriteJSON(w, http.StatusUnauthorized, decisionResponse{
			Decision:    "challenge",
			Reason:      d.Reason,
			RedirectURL: d.RedirectURL,
		})

	case domain.DecisionShowRegistrationInfo:
		support := d.Support
		httpx.WriteJSON(w, http.StatusOK, decisionResponse{
			Decision: "registration_info",
			Reason:   d.Reason,
			Support:  &support,
		})
	}
}

// resolveIdentity parses the X-Auth-User value, translating SID-form
// principals through the resolver when one is configured.
func resolveIdentity(sids domain.SidResolver, raw string) (domain.Identity, error) {
	id, err := domain.ParseIdentity(raw)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, domain.ErrSIDIdentity) && sids != nil {
		upn, rerr := sids.Resolve(raw)
		if rerr != nil {
			return domain.Identity{}, rerr
		}
		return domain.ParseIdentity(upn)
	}
	return domain.Identity{}, err
}

func writeBadIdentity(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
		"error": "invalid_identity",
	})
}
