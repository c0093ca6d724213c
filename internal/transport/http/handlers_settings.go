package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/info-evry/astro-join/pkg/domainerrors"
)

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settings":          values,
		"applications_open": h.settings.ApplicationsOpen(r.Context()),
		"enrollment_tracks": h.settings.EnrollmentTracks(r.Context()),
	})
}

type setSettingRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req setSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
