package http

import (
	"encoding/json"
	"net/http"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/httpx"
)

// ChallengeHandler starts a second-factor challenge: it asks the backend
// for an access page and hands the URL back to the product, which redirects
// the user there.
type ChallengeHandler struct {
	Decisions DecisionService
	Sids      domain.SidResolver
}

type challengeRequest struct {
	PostbackURL string `json:"postback_url"`
}

func (h *ChallengeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := resolveIdentity(h.Sids, r.Header.Get(headerAuthUser))
	if err != nil {
		writeBadIdentity(w)
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostbackURL == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "postback_url is required",
		})
		return
	}

	writeDecision(w, h.Decisions.BeginChallenge(r.Context(), id, req.PostbackURL))
}
