package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/auth"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// Using hand-written fakes (not a mock framework) keeps the tests easy to
// read: you can see exactly what each fake does. Each fake enforces the same
// rules the SQLite repository does (unique keys, ownership in the WHERE
// clause) so the services are tested against realistic behavior.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	nextID int
	// set to a non-nil error to simulate a database failure
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err := user.Validate(); err != nil {
		return apperror.ValidationFailed("identity", err.Error())
	}
	for _, existing := range f.users {
		switch {
		case user.Username() != "" && existing.Username() == user.Username():
			return apperror.DuplicateKey("user", "username")
		case user.GoogleID() != "" && existing.GoogleID() == user.GoogleID():
			return apperror.DuplicateKey("user", "googleId")
		case user.Email != "" && existing.Email == user.Email:
			return apperror.DuplicateKey("user", "email")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, key string) (*model.User, error) {
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username() == username }, username)
}

func (f *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.GoogleID() == googleID }, googleID)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeUserRepo) LinkGoogleID(_ context.Context, userID, googleID string) error {
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.Federated = &model.FederatedIdentity{Provider: model.ProviderGoogle, Subject: googleID}
	return nil
}

func (f *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	users := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// fakeGoogle maps raw tokens to identities. Unknown tokens fail verification.
type fakeGoogle map[string]*auth.GoogleIdentity

func (f fakeGoogle) Verify(_ context.Context, raw string) (*auth.GoogleIdentity, error) {
	if id, ok := f[raw]; ok {
		return id, nil
	}
	return nil, fmt.Errorf("fake: unknown token %q", raw)
}

// fakeStore is an in-memory RecordRepository + ApplicationRepository.
// One struct serves both because membership and records live together, the
// same way they share one SQLite database.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string]*model.Record
	order    []string                  // creation order
	applied  map[string][]string       // userID -> recordIDs in application order
	profiles map[string]*model.Profile // userID -> profile
	nextID   int
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:  make(map[string]*model.Record),
		applied:  make(map[string][]string),
		profiles: make(map[string]*model.Profile),
	}
}

var (
	_ repository.RecordRepository      = (*fakeStore)(nil)
	_ repository.ApplicationRepository = (*fakeStore)(nil)
)

func (f *fakeStore) takeErr() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeStore) hasApplied(userID, recordID string) bool {
	for _, id := range f.applied[userID] {
		if id == recordID {
			return true
		}
	}
	return false
}

func (f *fakeStore) Create(_ context.Context, r *model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.nextID++
	r.ID = fmt.Sprintf("rec-%d", f.nextID)
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	copied := *r
	f.records[r.ID] = &copied
	f.order = append(f.order, r.ID)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id, viewerID string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, apperror.NotFound("record", id)
	}
	copied := *r
	copied.IsApplied = f.hasApplied(viewerID, id)
	return &copied, nil
}

func (f *fakeStore) List(_ context.Context, viewerID string, opts repository.ListOptions) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	out := []model.Record{}
	for i := len(f.order) - 1; i >= 0; i-- {
		r, ok := f.records[f.order[i]]
		if !ok || (opts.OwnerID != "" && r.OwnerUserID != opts.OwnerID) {
			continue
		}
		copied := *r
		copied.IsApplied = f.hasApplied(viewerID, r.ID)
		out = append(out, copied)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, r *model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[r.ID]
	if !ok || existing.OwnerUserID != r.OwnerUserID {
		return apperror.NotFound("record", r.ID)
	}
	r.UpdatedAt = time.Now()
	copied := *r
	copied.ClickCount = existing.ClickCount
	f.records[r.ID] = &copied
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.records[id]
	if !ok || existing.OwnerUserID != ownerID {
		return apperror.NotFound("record", id)
	}
	delete(f.records, id)
	for user, ids := range f.applied {
		kept := ids[:0]
		for _, rid := range ids {
			if rid != id {
				kept = append(kept, rid)
			}
		}
		f.applied[user] = kept
	}
	return nil
}

func (f *fakeStore) IncrementClick(_ context.Context, id string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, apperror.NotFound("record", id)
	}
	r.ClickCount++
	copied := *r
	return &copied, nil
}

func (f *fakeStore) EnsureProfile(_ context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	p, ok := f.profiles[userID]
	if !ok {
		p = &model.Profile{UserID: userID, CreatedAt: time.Now()}
		f.profiles[userID] = p
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) AddApplication(_ context.Context, userID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.records[recordID]; !ok {
		return apperror.NotFound("record", recordID)
	}
	if !f.hasApplied(userID, recordID) {
		f.applied[userID] = append(f.applied[userID], recordID)
	}
	return nil
}

func (f *fakeStore) RemoveApplication(_ context.Context, userID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.applied[userID]
	for i, id := range ids {
		if id == recordID {
			f.applied[userID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) HasApplied(_ context.Context, userID, recordID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return false, err
	}
	return f.hasApplied(userID, recordID), nil
}

func (f *fakeStore) AppliedRecords(_ context.Context, userID string) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Record{}
	for _, id := range f.applied[userID] {
		if r, ok := f.records[id]; ok {
			copied := *r
			copied.IsApplied = true
			out = append(out, copied)
		}
	}
	return out, nil
}
