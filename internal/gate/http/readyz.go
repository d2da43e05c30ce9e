package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ironbark/mfagate/pkg/httpx"
)

// ReadyzHandler probes the injected dependency check (the shared cache,
// when one is configured). A nil check means nothing external to verify.
func ReadyzHandler(startTime time.Time, version string, ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK
		checks := map[string]string{"cache": "ok"}

		if ready != nil {
			if err := ready(r.Context()); err != nil {
				checks["cache"] = "error: " + err.Error()
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
