package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/apperr"
)

// errorBody is the JSON shape every non-2xx response carries.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *zap.SugaredLogger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnw("failed to encode response body", "error", err)
	}
}

// writeError maps err to the status-and-body shape of spec.md §7 via
// apperr.HTTPStatus. Any error not already tagged with a Kind is treated
// as internal.
func writeError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		log.Errorw("request failed", "kind", kind, "error", err)
	}
	writeJSON(w, log, status, errorBody{Error: err.Error()})
}
