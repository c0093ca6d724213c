package httptransport

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/info-evry/astro-join/internal/member"
	"github.com/info-evry/astro-join/pkg/domainerrors"
)

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var app member.Application
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	m, err := h.members.SubmitApplication(r.Context(), app)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members, "count": len(members)})
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}
	m, err := h.members.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}
	var patch member.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid request body"))
		return
	}
	m, err := h.members.UpdateMember(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := memberID(w, r)
	if !ok {
		return
	}
	entries, err := h.members.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.members.Stats(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams the roster as CSV with the display labels the import
// path understands, so an export can be re-imported as-is.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="members.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Prénom", "Nom", "Email", "Téléphone", "Discord", "Telegram",
		"Numéro étudiant", "INE", "Filière", "Statut"})
	for _, m := range members {
		_ = cw.Write([]string{
			m.FirstName, m.LastName, m.Email, m.Phone, m.DiscordHandle, m.TelegramHandle,
			m.StudentID, m.EnrollmentNumber, m.Track, m.Status.Label(),
		})
	}
	cw.Flush()
}

func memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid member id"))
		return 0, false
	}
	return id, true
}
