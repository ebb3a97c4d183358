// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	UserHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt),
//	                     GoogleVerifier (Google ID tokens)
//
// KEY RESPONSIBILITIES:
//   - Register and log in local (username/password) users
//   - Sign in Google users: find by Google ID, else link by email, else create
//   - Issue the bearer token every successful sign-in returns
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/auth"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
)

// GoogleVerifier verifies a Google ID token. *auth.GoogleVerifier is the
// production implementation; tests pass a fake.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (*auth.GoogleIdentity, error)
}

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - google     GoogleVerifier             → may be nil when Google sign-in is off
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	google    GoogleVerifier
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	google GoogleVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		logger:    logger,
	}
}

// AuthResult is returned by every sign-in operation.
// It bundles the user and the issued JWT so the handler can respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput is the body of POST /users/auth/register.
//
// Name and Email are optional. A stored email is what lets a later Google
// sign-in with the same address attach to this account instead of creating
// a second one.
type RegisterInput struct {
	Username        string `json:"username"        validate:"required,max=64"`
	Password        string `json:"password"        validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Name            string `json:"name"            validate:"max=128"`
	Email           string `json:"email"           validate:"omitempty,email,max=254"`
}

// LoginInput is the body of POST /users/auth/login.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates a local account and signs it in.
//
// Order matters: input checks first, then the (slow) bcrypt hash, then the
// insert. A taken username is only discovered by the insert's UNIQUE
// constraint, which is the one check that can't race with another request.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := model.NewLocalUser(in.Username, hash)
	user.Name = in.Name
	user.Email = in.Email
	if err := s.users.Create(ctx, user); err != nil {
		// DuplicateKey (username or email) passes through untouched: the
		// handler maps it to 400.
		return nil, fmt.Errorf("service/auth: registering %q: %w", in.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", in.Username),
	)

	return s.issue(user)
}

// Login checks a username/password pair.
//
// Every failure (unknown username, federated-only account, wrong password)
// returns the same apperror.InvalidCredentials, and every one of them costs a
// bcrypt comparison, so neither the message nor the timing tells a caller
// which usernames exist.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.VerifyNothing(in.Password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", in.Username, err)
	}

	if user.Local == nil {
		_ = s.passwords.VerifyNothing(in.Password)
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.Local.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("failed login", slog.String("username", in.Username))
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issue(user)
}

// GoogleLogin signs in with a Google ID token.
//
// ACCOUNT RESOLUTION, in order:
//  1. A user already carrying this Google subject → sign them in
//  2. A user with the token's email → link the Google subject to that account
//     (a local account gains a second way to sign in)
//  3. Otherwise → create a new Google-only user
func (s *AuthService) GoogleLogin(ctx context.Context, rawToken string) (*AuthResult, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperror.ValidationFailed("token", "No token provided")
	}
	if s.google == nil {
		return nil, apperror.ValidationFailed("token", "Google sign-in is not configured")
	}

	identity, err := s.google.Verify(ctx, rawToken)
	if err != nil {
		s.logger.Warn("rejected google token", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("token", "Invalid Google token")
	}

	user, err := s.resolveGoogleUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *AuthService) resolveGoogleUser(ctx context.Context, id *auth.GoogleIdentity) (*model.User, error) {
	// 1. Known Google account
	user, err := s.users.GetByGoogleID(ctx, id.Subject)
	if err == nil {
		s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up google id: %w", err)
	}

	// 2. Existing account with the same email
	email := normalizeEmail(id.Email)
	if email != "" {
		user, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if user.Federated != nil {
				// The email belongs to a different Google account.
				return nil, apperror.DuplicateKey("user", "email")
			}
			if err := s.users.LinkGoogleID(ctx, user.ID, id.Subject); err != nil {
				return nil, fmt.Errorf("service/auth: linking google id to %s: %w", user.ID, err)
			}
			user.Federated = &model.FederatedIdentity{Provider: model.ProviderGoogle, Subject: id.Subject}
			s.logger.Info("linked Google account", slog.String("userID", user.ID))
			return user, nil
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("service/auth: looking up email: %w", err)
		}
	}

	// 3. Brand new user
	user = model.NewFederatedUser(id.Subject, id.Name, email)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating google user: %w", err)
	}

	s.logger.Info("user registered via Google", slog.String("userID", user.ID))
	return user, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ListUsers returns every registered user.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing users: %w", err)
	}
	return users, nil
}

// normalizeEmail makes addresses comparable: Google reports them lower-cased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issue mints the bearer token for a signed-in user.
func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
