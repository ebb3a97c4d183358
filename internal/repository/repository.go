package repository

import (
	"context"

	"github.com/sakif/job-tracker/internal/model"
)

// ListOptions filters and pages a record listing.
// Limit <= 0 returns every matching record.
type ListOptions struct {
	OwnerID string
	Limit   int
	Offset  int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	LinkGoogleID(ctx context.Context, userID, googleID string) error
	List(ctx context.Context) ([]model.User, error)
}

// RecordRepository stores records. viewerID, when non-empty, is the user
// whose application membership fills Record.IsApplied.
type RecordRepository interface {
	Create(ctx context.Context, record *model.Record) error
	GetByID(ctx context.Context, id, viewerID string) (*model.Record, error)
	List(ctx context.Context, viewerID string, opts ListOptions) ([]model.Record, error)
	Update(ctx context.Context, record *model.Record) error
	Delete(ctx context.Context, id, ownerID string) error
	IncrementClick(ctx context.Context, id string) (*model.Record, error)
}

// ApplicationRepository owns record_applications, the one place where
// "user U applied to record R" is stored, plus the lazily created profile row.
type ApplicationRepository interface {
	EnsureProfile(ctx context.Context, userID string) (*model.Profile, error)
	AddApplication(ctx context.Context, userID, recordID string) error
	RemoveApplication(ctx context.Context, userID, recordID string) error
	HasApplied(ctx context.Context, userID, recordID string) (bool, error)
	AppliedRecords(ctx context.Context, userID string) ([]model.Record, error)
}
