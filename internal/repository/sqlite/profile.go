package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/model"
	"github.com/sakif/job-tracker/internal/repository"
)

var _ repository.ApplicationRepository = (*ApplicationDB)(nil)

// ApplicationDB stores profiles and the record_applications membership table.
type ApplicationDB struct {
	conn *sql.DB
}

// Applications returns the application repository backed by this database.
func (db *DB) Applications() *ApplicationDB {
	return &ApplicationDB{conn: db.conn}
}

// EnsureProfile returns the user's profile row, creating it on first use.
//
// INSERT OR IGNORE + SELECT:
// Two concurrent first requests both try the INSERT; the PRIMARY KEY on
// user_id lets exactly one of them win and the other is silently ignored.
// Both then read the same row back. No application-level lock is needed.
//
// AppliedRecords is not filled here; see AppliedRecords.
func (a *ApplicationDB) EnsureProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if _, err := a.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (user_id, created_at) VALUES (?, ?)`,
		userID, time.Now(),
	); err != nil {
		return nil, fmt.Errorf("sqlite: creating profile for user %s: %w", userID, err)
	}

	p := &model.Profile{UserID: userID}
	if err := a.conn.QueryRowContext(ctx,
		`SELECT created_at FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.CreatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: reading profile for user %s: %w", userID, err)
	}

	return p, nil
}

// AddApplication marks userID as applied to recordID.
// Applying twice is a no-op: the (record_id, user_id) primary key makes a
// duplicate impossible and OR IGNORE turns the conflict into success.
func (a *ApplicationDB) AddApplication(ctx context.Context, userID, recordID string) error {
	var exists bool
	if err := a.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM records WHERE id = ?)`, recordID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: checking record %s: %w", recordID, err)
	}
	if !exists {
		return apperror.NotFound("record", recordID)
	}

	if _, err := a.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO record_applications (record_id, user_id, applied_at)
		 VALUES (?, ?, ?)`,
		recordID, userID, time.Now(),
	); err != nil {
		return fmt.Errorf("sqlite: adding application (record=%s user=%s): %w", recordID, userID, err)
	}

	return nil
}

// RemoveApplication clears userID's application to recordID. Removing an
// application that doesn't exist is not an error.
func (a *ApplicationDB) RemoveApplication(ctx context.Context, userID, recordID string) error {
	if _, err := a.conn.ExecContext(ctx,
		`DELETE FROM record_applications WHERE record_id = ? AND user_id = ?`,
		recordID, userID,
	); err != nil {
		return fmt.Errorf("sqlite: removing application (record=%s user=%s): %w", recordID, userID, err)
	}
	return nil
}

func (a *ApplicationDB) HasApplied(ctx context.Context, userID, recordID string) (bool, error) {
	var applied bool
	err := a.conn.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM record_applications WHERE record_id = ? AND user_id = ?
		)`,
		recordID, userID,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking application (record=%s user=%s): %w", recordID, userID, err)
	}
	return applied, nil
}

// AppliedRecords resolves the user's applications to full records, in the
// order they were applied. rowid is SQLite's insertion counter, which is a
// stricter order than applied_at when two applications share a timestamp.
func (a *ApplicationDB) AppliedRecords(ctx context.Context, userID string) ([]model.Record, error) {
	rows, err := a.conn.QueryContext(ctx,
		`SELECT `+recordColumns+`, 1
		 FROM records
		 JOIN record_applications ra ON ra.record_id = records.id
		 WHERE ra.user_id = ?
		 ORDER BY ra.rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing applied records for user %s: %w", userID, err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning applied record: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating applied records: %w", err)
	}

	return records, nil
}
