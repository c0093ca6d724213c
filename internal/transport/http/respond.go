package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/info-evry/astro-join/pkg/domainerrors"
)

type errorEnvelope struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every endpoint produces
// the same JSON envelope. Internal causes are never leaked to clients.
func writeError(w http.ResponseWriter, err error) {
	var de *domainerrors.Error
	if !errors.As(err, &de) {
		de = domainerrors.New(domainerrors.CodeInternal, "internal error")
	}
	envelope := errorEnvelope{
		Error:   string(de.Code),
		Message: de.Message,
		Details: de.Details,
	}
	if de.Code == domainerrors.CodeInternal {
		envelope.Message = "internal error"
		envelope.Details = nil
	}
	writeJSON(w, domainerrors.ToHTTPStatus(de.Code), envelope)
}
