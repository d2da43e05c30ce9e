package http

import (
	"net/http"

	"github.com/ironbark/mfagate/internal/gate/domain"
	"github.com/ironbark/mfagate/pkg/httpx"
)

// assertionField is the form field the challenge page posts the signed
// assertion under.
const assertionField = "accessToken"

// PostbackHandler completes a challenge. On success the assertion is also
// set as a cookie so follow-up requests carry it until the verdict cache
// entry expires.
type PostbackHandler struct {
	Decisions DecisionService
	Sids      domain.SidResolver
}

func (h *PostbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := resolveIdentity(h.Sids, r.Header.Get(headerAuthUser))
	if err != nil {
		writeBadIdentity(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid form body",
		})
		return
	}
	token := r.PostFormValue(assertionField)
	if token == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": assertionField + " is required",
		})
		return
	}

	d := h.Decisions.CompletePostback(r.Context(), id, token, r.Header.Get(headerDeviceID))
	if d.Kind == domain.DecisionAllow {
		http.SetCookie(w, &http.Cookie{
			Name:     assertionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeDecision(w, d)
}
