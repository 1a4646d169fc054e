package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rexmedia/mediavault/internal/apperr"
)

// errorBody is the wire shape for every error response (§6, §7): {error,
// message, status}.
type errorBody struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	Status           int    `json:"status"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

// writeError maps err to its Kind's status code and serializes the error
// envelope. 5xx messages are redacted per §7; client errors keep their
// original message since they describe a fixable request problem.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.Of(err)
	if !ok {
		ae = apperr.Wrap(err, apperr.KindInternal, "unexpected error")
	}

	if ae.IsServerError() {
		a.Log.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.String("kind", string(ae.Kind)), zap.Error(ae))
	}

	message := ae.Message
	if ae.IsServerError() {
		message = "An internal error occurred. Please try again later."
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.HTTPStatus())
	body := errorBody{Error: string(ae.Kind), Message: message, Status: ae.HTTPStatus(), RemainingSeconds: ae.RemainingSeconds}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		a.Log.Error("failed to write JSON error response", zap.Error(encErr))
	}
}

// writeJSON serializes v with status and a JSON content type.
func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Log.Error("failed to write JSON response", zap.Error(err))
	}
}
