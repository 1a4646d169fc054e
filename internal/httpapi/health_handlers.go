package httpapi

import (
	"net/http"

	"github.com/rexmedia/mediavault/internal/apperr"
)

// handleHealthLive implements GET /health/live.
func (a *API) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]bool{"live": a.Health.Live()})
}

// handleHealthReady implements GET /health/ready.
func (a *API) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if err := a.Health.Ready(); err != nil {
		a.writeError(w, r, apperr.Wrap(err, apperr.KindDatabase, "metadata store is not reachable"))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// handleHealthStats implements GET /health/stats.
func (a *API) handleHealthStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Health.Collect()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}
