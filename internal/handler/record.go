package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/auth"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
	"github.com/sakif/job-tracker/internal/service"
)

// RecordHandler serves the /records routes.
//
// The handler only translates between HTTP and the service: it decodes
// bodies, reads the authenticated user from the context and maps errors to
// status codes. Ownership and validation rules live in service.RecordService.
type RecordHandler struct {
	svc    *service.RecordService
	logger *slog.Logger
}

func NewRecordHandler(svc *service.RecordService, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{svc: svc, logger: logger}
}

// recordRequest is the wire shape of a create or update body.
//
// Dates arrive as strings so both "2024-03-01" and RFC 3339 are accepted.
// "type" and "date" are older spellings of employmentType and appliedDate
// that existing clients still send.
type recordRequest struct {
	Company           *string `json:"company"`
	EmploymentType    *string `json:"employmentType"`
	Type              *string `json:"type"`
	JobTitle          *string `json:"jobTitle"`
	AppliedDate       *string `json:"appliedDate"`
	Date              *string `json:"date"`
	WebsiteLink       *string `json:"websiteLink"`
	Comment           *string `json:"comment"`
	Click             *int    `json:"click"`
	ReceivedInterview *bool   `json:"receivedInterview"`
	ReceivedOffer     *bool   `json:"receivedOffer"`
}

func (req *recordRequest) employmentType() *string {
	if req.EmploymentType != nil {
		return req.EmploymentType
	}
	return req.Type
}

func (req *recordRequest) appliedDate() *string {
	if req.AppliedDate != nil {
		return req.AppliedDate
	}
	return req.Date
}

// toCreateInput converts the request for RecordService.Create. Missing
// fields become zero values and are reported by the service's validation.
func (req *recordRequest) toCreateInput() (service.CreateRecordInput, error) {
	in := service.CreateRecordInput{
		Company:           deref(req.Company),
		EmploymentType:    deref(req.employmentType()),
		JobTitle:          deref(req.JobTitle),
		WebsiteLink:       deref(req.WebsiteLink),
		Comment:           deref(req.Comment),
		Click:             req.Click,
		ReceivedInterview: req.ReceivedInterview,
		ReceivedOffer:     req.ReceivedOffer,
	}

	date, err := parseDate("appliedDate", deref(req.appliedDate()))
	if err != nil {
		return in, err
	}
	in.AppliedDate = date

	return in, nil
}

// toPatch converts the request for RecordService.Update. Absent fields stay nil.
func (req *recordRequest) toPatch() (model.RecordPatch, error) {
	patch := model.RecordPatch{
		Company:           req.Company,
		EmploymentType:    req.employmentType(),
		JobTitle:          req.JobTitle,
		WebsiteLink:       req.WebsiteLink,
		Comment:           req.Comment,
		ReceivedInterview: req.ReceivedInterview,
		ReceivedOffer:     req.ReceivedOffer,
	}

	if raw := req.appliedDate(); raw != nil {
		date, err := parseDate("appliedDate", *raw)
		if err != nil {
			return patch, err
		}
		patch.AppliedDate = &date
	}

	return patch, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// callerID returns the authenticated user's ID. Routes that call it sit
// behind RequireAuth, so a missing user is a wiring bug; it still answers 401
// instead of running with an empty owner.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
	}
	return id, ok
}

// HandleList returns all records, newest first, each with the caller's
// isApplied flag.
//
// HTTP: GET /records[?owner=me][&limit=N&offset=M]
func (h *RecordHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var opts repository.ListOptions
	switch owner := r.URL.Query().Get("owner"); owner {
	case "":
	case "me":
		opts.OwnerID = userID
	default:
		writeError(w, apperror.ValidationFailed("owner", `owner must be "me" when set`))
		return
	}

	var err error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}

	records, err := h.svc.List(r.Context(), userID, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleCreate creates a record owned by the caller.
//
// HTTP: POST /records
func (h *RecordHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := req.toCreateInput()
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// HandleUpdate applies a partial update to a record the caller owns.
//
// HTTP: PUT /records/{id}
func (h *RecordHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), userID, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleDelete removes a record the caller owns.
//
// HTTP: DELETE /records/{id} → 204 No Content
func (h *RecordHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleClick counts a visit to the record's website link.
//
// HTTP: PUT /records/{id}/click (no authentication)
func (h *RecordHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.IncrementClick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleDuplicate copies a record into the caller's list and applied records.
//
// HTTP: POST /records/duplicate/{recordId}
func (h *RecordHandler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	record, err := h.svc.Duplicate(r.Context(), chi.URLParam(r, "recordId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// HandleSetStatus marks the record applied or not applied for the caller.
//
// HTTP: PATCH /records/{id}/status
// Body: {"status": "Applied"} (anything else non-empty means not applied)
func (h *RecordHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), userID, body.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// HandleGetStatus reports whether the caller has applied to the record.
//
// HTTP: GET /records/{id}/status
func (h *RecordHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	status, err := h.svc.GetStatus(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
