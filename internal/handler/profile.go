package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/job-tracker/internal/service"
)

// ProfileHandler serves /profiles/{userId}. Callers only ever see their own.
type ProfileHandler struct {
	svc    *service.ProfileService
	logger *slog.Logger
}

func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, logger: logger}
}

// HandleGet returns the profile with its applied records resolved.
//
// HTTP: GET /profiles/{userId}
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	profile, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleAddRecord adds a record to the profile's applied records.
//
// HTTP: PUT /profiles/{userId}
// Body: {"recordId": "..."}
func (h *ProfileHandler) HandleAddRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var body struct {
		RecordID string `json:"recordId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.svc.AddRecord(r.Context(), userID, chi.URLParam(r, "userId"), body.RecordID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
