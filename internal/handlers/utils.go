package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/avagner/summit/internal/lobby"
)

// errorResponse is the JSON body of every failed REST call.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status. Encode failures are logged; the
// status line is already on the wire by then.
func writeJSON(w http.ResponseWriter, log *logrus.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// writeError maps an operation failure to its REST shape. Internal causes are
// logged here and never leave the server; the client sees the generic message.
func writeError(w http.ResponseWriter, log *logrus.Logger, err error) {
	e := lobby.AsError(err)
	if e.Kind == lobby.KindInternal {
		log.WithError(e).Error("request failed")
	}
	writeJSON(w, log, e.HTTPStatus(), errorResponse{Error: e.Message})
}
