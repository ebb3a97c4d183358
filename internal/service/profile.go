package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
)

// ProfileService serves a user's profile: the list of records they applied to.
//
// A profile is a view over record_applications, so there is nothing to keep
// in sync with RecordService: marking a record applied there shows up here,
// and deleting a record removes it from every profile.
type ProfileService struct {
	applications repository.ApplicationRepository
	logger       *slog.Logger
}

func NewProfileService(applications repository.ApplicationRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{applications: applications, logger: logger}
}

// Get returns userID's profile, creating it on first access.
// Callers may only read their own profile.
func (s *ProfileService) Get(ctx context.Context, callerID, userID string) (*model.Profile, error) {
	if err := checkOwnProfile(callerID, userID); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

// AddRecord appends recordID to userID's applied records.
// Adding a record that is already there is a no-op, not an error.
func (s *ProfileService) AddRecord(ctx context.Context, callerID, userID, recordID string) (*model.Profile, error) {
	if err := checkOwnProfile(callerID, userID); err != nil {
		return nil, err
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil, apperror.ValidationFailed("recordId", "recordId is required")
	}

	if _, err := s.applications.EnsureProfile(ctx, userID); err != nil {
		return nil, fmt.Errorf("creating profile for %s: %w", userID, err)
	}
	if err := s.applications.AddApplication(ctx, userID, recordID); err != nil {
		// NotFound for an unknown record passes through as-is
		return nil, err
	}

	s.logger.Info("record added to profile",
		slog.String("user", userID),
		slog.String("record", recordID),
	)

	return s.load(ctx, userID)
}

func (s *ProfileService) load(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.applications.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for %s: %w", userID, err)
	}

	applied, err := s.applications.AppliedRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading applied records for %s: %w", userID, err)
	}
	profile.AppliedRecords = applied

	return profile, nil
}

func checkOwnProfile(callerID, userID string) error {
	if callerID == "" || callerID != userID {
		return apperror.Forbidden("you can only access your own profile")
	}
	return nil
}
