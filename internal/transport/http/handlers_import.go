package httptransport

import (
	"io"
	"net/http"

	"github.com/info-evry/astro-join/pkg/domainerrors"
)

// maxImportBytes bounds the CSV body. Student-association rosters are a few
// hundred rows; anything past this is a mistake or abuse.
const maxImportBytes = 5 << 20

// handleImport accepts the raw CSV text as the request body and runs the
// reconciliation engine. Row-level problems come back in the result, not as
// an HTTP error.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "failed to read request body"))
		return
	}
	if len(body) > maxImportBytes {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "import file too large"))
		return
	}
	result, err := h.members.ImportCSV(r.Context(), string(body))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
