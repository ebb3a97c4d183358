// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers should only know about HTTP (status codes, headers, JSON).
// Services should only know about business rules (validation, ownership,
// application membership). Neither should know about SQL.
//
// DEPENDENCY INJECTION:
// RecordService takes repository.RecordRepository and
// repository.ApplicationRepository (interfaces), NOT a *sqlite.DB. In tests
// we pass in-memory fakes (see fakes_test.go).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
)

// MaxListLimit caps a single page of records when the caller asks for paging.
const MaxListLimit = 100

// RecordService handles business logic for job records and the caller's
// application status on them.
type RecordService struct {
	records      repository.RecordRepository
	applications repository.ApplicationRepository
	logger       *slog.Logger
}

// NewRecordService creates a new RecordService.
func NewRecordService(
	records repository.RecordRepository,
	applications repository.ApplicationRepository,
	logger *slog.Logger,
) *RecordService {
	return &RecordService{
		records:      records,
		applications: applications,
		logger:       logger,
	}
}

// CreateRecordInput holds the fields of a new record.
//
// Click is a pointer so that "not sent" (nil, rejected by required) is
// distinguishable from an explicit 0.
type CreateRecordInput struct {
	Company           string    `json:"company"        validate:"required"`
	EmploymentType    string    `json:"employmentType" validate:"required"`
	JobTitle          string    `json:"jobTitle"       validate:"required"`
	AppliedDate       time.Time `json:"appliedDate"    validate:"required"`
	WebsiteLink       string    `json:"websiteLink"    validate:"required"`
	Comment           string    `json:"comment"`
	Click             *int      `json:"click"          validate:"required,gte=0"`
	ReceivedInterview *bool     `json:"receivedInterview"`
	ReceivedOffer     *bool     `json:"receivedOffer"`
}

func (in *CreateRecordInput) trim() {
	in.Company = strings.TrimSpace(in.Company)
	in.EmploymentType = strings.TrimSpace(in.EmploymentType)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.WebsiteLink = strings.TrimSpace(in.WebsiteLink)
	in.Comment = strings.TrimSpace(in.Comment)
}

// List returns records newest first, each flagged with whether viewerID has
// applied to it.
//
// PAGINATION:
// Limit <= 0 means "everything". A positive limit is clamped to MaxListLimit
// so callers can't request a million rows in one page.
func (s *RecordService) List(ctx context.Context, viewerID string, opts repository.ListOptions) ([]model.Record, error) {
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	records, err := s.records.List(ctx, viewerID, opts)
	if err != nil {
		s.logger.Error("failed to list records", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing records: %w", err)
	}

	return records, nil
}

// Create validates and saves a new record owned by ownerID.
//
// Validation happens here, not in the handler, so every caller gets the same
// rules. Errors come back as apperror.ValidationFailed naming the JSON field.
func (s *RecordService) Create(ctx context.Context, ownerID string, in CreateRecordInput) (*model.Record, error) {
	in.trim()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	record := &model.Record{
		OwnerUserID:       ownerID,
		Company:           in.Company,
		EmploymentType:    in.EmploymentType,
		JobTitle:          in.JobTitle,
		AppliedDate:       in.AppliedDate,
		WebsiteLink:       in.WebsiteLink,
		Comment:           in.Comment,
		ClickCount:        *in.Click,
		ReceivedInterview: in.ReceivedInterview,
		ReceivedOffer:     in.ReceivedOffer,
	}

	if err := s.records.Create(ctx, record); err != nil {
		s.logger.Error("failed to create record",
			slog.String("company", record.Company),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating record: %w", err)
	}

	s.logger.Info("record created",
		slog.String("id", record.ID),
		slog.String("owner", ownerID),
	)

	return record, nil
}

// Update applies a partial update to a record the caller owns.
//
// STRATEGY: "Fetch then update"
//  1. Fetch the existing record (NotFound if it doesn't exist)
//  2. Refuse if the caller isn't the owner, with the same NotFound, so the
//     API doesn't reveal that somebody else's record exists
//  3. Merge the patch and save
//
// The repository repeats the ownership check in its WHERE clause, so a
// record that changes hands between steps 1 and 3 still can't be overwritten.
func (s *RecordService) Update(ctx context.Context, id, callerID string, patch model.RecordPatch) (*model.Record, error) {
	record, err := s.records.GetByID(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if record.OwnerUserID != callerID {
		return nil, apperror.NotFound("record", id)
	}

	patch.Apply(record)
	if err := validateRequiredFields(record); err != nil {
		return nil, err
	}

	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}

	s.logger.Info("record updated", slog.String("id", id))
	return record, nil
}

// validateRequiredFields stops an update from blanking a field Create requires.
func validateRequiredFields(r *model.Record) error {
	required := []struct{ field, value string }{
		{"company", r.Company},
		{"employmentType", r.EmploymentType},
		{"jobTitle", r.JobTitle},
		{"websiteLink", r.WebsiteLink},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return apperror.ValidationFailed(f.field, f.field+" is required")
		}
	}
	if r.AppliedDate.IsZero() {
		return apperror.ValidationFailed("appliedDate", "appliedDate is required")
	}
	return nil
}

// Delete removes a record the caller owns.
// Missing and not-owned both return apperror.ErrNotFound.
func (s *RecordService) Delete(ctx context.Context, id, callerID string) error {
	if err := s.records.Delete(ctx, id, callerID); err != nil {
		return err
	}

	s.logger.Info("record deleted", slog.String("id", id), slog.String("by", callerID))
	return nil
}

// IncrementClick counts one visit to the record's website link.
// It needs no caller: the link is followed from shared listings.
func (s *RecordService) IncrementClick(ctx context.Context, id string) (*model.Record, error) {
	return s.records.IncrementClick(ctx, id)
}

// Duplicate copies someone's record into the caller's own list.
//
// The copy keeps every field except: a new ID, clickCount reset to 0, and the
// caller as owner. It is then added to the caller's applied records.
//
// NO TRANSACTION:
// The insert and the application are two writes. If the second fails the
// copy still exists, unapplied, and the error is returned; the caller can
// mark it applied with PATCH /records/{id}/status.
func (s *RecordService) Duplicate(ctx context.Context, sourceID, callerID string) (*model.Record, error) {
	source, err := s.records.GetByID(ctx, sourceID, callerID)
	if err != nil {
		return nil, err
	}

	copied := *source
	copied.ID = ""
	copied.ClickCount = 0
	copied.OwnerUserID = callerID
	copied.IsApplied = false
	copied.ReceivedInterview = cloneBool(source.ReceivedInterview)
	copied.ReceivedOffer = cloneBool(source.ReceivedOffer)

	if err := s.records.Create(ctx, &copied); err != nil {
		return nil, fmt.Errorf("duplicating record %s: %w", sourceID, err)
	}

	if err := s.apply(ctx, callerID, copied.ID); err != nil {
		s.logger.Error("duplicate created but not applied",
			slog.String("id", copied.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("applying duplicate %s: %w", copied.ID, err)
	}
	copied.IsApplied = true

	s.logger.Info("record duplicated",
		slog.String("source", sourceID),
		slog.String("id", copied.ID),
		slog.String("owner", callerID),
	)

	return &copied, nil
}

// SetStatus records whether the caller has applied to a record.
//
// "Applied" adds the record to the caller's applications; any other
// non-empty status removes it. Both directions are idempotent.
func (s *RecordService) SetStatus(ctx context.Context, id, callerID, status string) (*model.ApplicationStatus, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperror.ValidationFailed("status", "status is required")
	}

	if _, err := s.records.GetByID(ctx, id, callerID); err != nil {
		return nil, err
	}

	if status == model.StatusApplied {
		if err := s.apply(ctx, callerID, id); err != nil {
			return nil, fmt.Errorf("marking record %s applied: %w", id, err)
		}
	} else {
		if err := s.applications.RemoveApplication(ctx, callerID, id); err != nil {
			return nil, fmt.Errorf("clearing application on record %s: %w", id, err)
		}
		status = model.StatusNotApplied
	}

	s.logger.Info("application status changed",
		slog.String("record", id),
		slog.String("user", callerID),
		slog.String("status", status),
	)

	return &model.ApplicationStatus{RecordID: id, Status: status}, nil
}

// GetStatus reports whether the caller has applied to a record.
func (s *RecordService) GetStatus(ctx context.Context, id, callerID string) (*model.ApplicationStatus, error) {
	// GetByID only establishes that the record exists.
	if _, err := s.records.GetByID(ctx, id, callerID); err != nil {
		return nil, err
	}

	applied, err := s.applications.HasApplied(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("service/record: reading status of %s: %w", id, err)
	}

	status := model.StatusNotApplied
	if applied {
		status = model.StatusApplied
	}
	return &model.ApplicationStatus{RecordID: id, Status: status}, nil
}

// apply makes sure the user has a profile, then adds the application.
func (s *RecordService) apply(ctx context.Context, userID, recordID string) error {
	if _, err := s.applications.EnsureProfile(ctx, userID); err != nil {
		return err
	}
	return s.applications.AddApplication(ctx, userID, recordID)
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
