package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users-table view of a DB. Obtain one with DB.Users().
type UserDB struct {
	conn *sql.DB
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

const userColumns = `id, username, password_hash, google_id, name, email, created_at, updated_at`

// userFields maps a column that can violate a UNIQUE constraint to the JSON
// field name the API reports back.
var userFields = map[string]string{
	"username":  "username",
	"google_id": "googleId",
	"email":     "email",
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows, so one scan
// function serves QueryRowContext and QueryContext callers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser rebuilds the identity variants from the nullable columns:
// a non-NULL username means a LocalIdentity, a non-NULL google_id a
// FederatedIdentity.
func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                              model.User
		username, hash, googleID, mail sql.NullString
	)
	if err := row.Scan(
		&u.ID, &username, &hash, &googleID, &u.Name, &mail,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if username.Valid {
		u.Local = &model.LocalIdentity{Username: username.String, PasswordHash: hash.String}
	}
	if googleID.Valid {
		u.Federated = &model.FederatedIdentity{Provider: model.ProviderGoogle, Subject: googleID.String}
	}
	u.Email = mail.String

	return &u, nil
}

// Create inserts a new user. The ID and timestamps are filled in on the
// caller's struct.
//
// A UNIQUE violation (username, google_id or email already taken) comes back
// as apperror.DuplicateKey naming the offending field, which the handler
// turns into a 400.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return apperror.ValidationFailed("identity", err.Error())
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	var username, hash string
	if user.Local != nil {
		username, hash = user.Local.Username, user.Local.PasswordHash
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullString(username),
		nullString(hash),
		nullString(user.GoogleID()),
		user.Name,
		nullString(user.Email),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return apperror.DuplicateKey("user", userFields[column])
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// getUserBy runs a single-row lookup on one indexed column.
// column is always a constant from this file, never user input.
func (u *UserDB) getUserBy(ctx context.Context, column, value string) (*model.User, error) {
	user, err := scanUser(u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return user, nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getUserBy(ctx, "id", id)
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getUserBy(ctx, "username", username)
}

func (u *UserDB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return u.getUserBy(ctx, "google_id", googleID)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getUserBy(ctx, "email", email)
}

// LinkGoogleID attaches a Google subject to an existing account.
func (u *UserDB) LinkGoogleID(ctx context.Context, userID, googleID string) error {
	result, err := u.conn.ExecContext(ctx,
		`UPDATE users SET google_id = ?, updated_at = ? WHERE id = ?`,
		googleID, time.Now(), userID,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return apperror.DuplicateKey("user", userFields[column])
		}
		return fmt.Errorf("sqlite: linking google id to user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", userID)
	}

	return nil
}

// List returns every user, oldest first.
func (u *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}
