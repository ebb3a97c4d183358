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

var _ repository.RecordRepository = (*RecordDB)(nil)

// RecordDB is the records-table view of a DB. Obtain one with DB.Records().
type RecordDB struct {
	conn *sql.DB
}

// Records returns the record repository backed by this database.
func (db *DB) Records() *RecordDB {
	return &RecordDB{conn: db.conn}
}

const recordColumns = `id, owner_user_id, company, employment_type, job_title,
	applied_date, website_link, comment, click_count,
	received_interview, received_offer, created_at, updated_at`

// isAppliedColumn computes Record.IsApplied for the viewer bound to its
// single placeholder. An empty viewer matches no row, so anonymous reads
// get false everywhere.
const isAppliedColumn = `EXISTS (
	SELECT 1 FROM record_applications ra
	WHERE ra.record_id = records.id AND ra.user_id = ?
)`

// scanRecord reads recordColumns followed by one is-applied column.
func scanRecord(row rowScanner) (*model.Record, error) {
	var (
		r                model.Record
		interview, offer sql.NullBool
	)
	if err := row.Scan(
		&r.ID, &r.OwnerUserID, &r.Company, &r.EmploymentType, &r.JobTitle,
		&r.AppliedDate, &r.WebsiteLink, &r.Comment, &r.ClickCount,
		&interview, &offer, &r.CreatedAt, &r.UpdatedAt,
		&r.IsApplied,
	); err != nil {
		return nil, err
	}
	r.ReceivedInterview = boolPtr(interview)
	r.ReceivedOffer = boolPtr(offer)
	return &r, nil
}

// Create inserts a new record owned by record.OwnerUserID.
// ID and timestamps are set on the caller's struct.
func (rdb *RecordDB) Create(ctx context.Context, record *model.Record) error {
	now := time.Now()
	record.ID = xid.New().String()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := rdb.conn.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OwnerUserID,
		record.Company,
		record.EmploymentType,
		record.JobTitle,
		record.AppliedDate,
		record.WebsiteLink,
		record.Comment,
		record.ClickCount,
		nullBool(record.ReceivedInterview),
		nullBool(record.ReceivedOffer),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating record: %w", err)
	}

	return nil
}

// GetByID retrieves a single record, with IsApplied filled for viewerID.
func (rdb *RecordDB) GetByID(ctx context.Context, id, viewerID string) (*model.Record, error) {
	record, err := scanRecord(rdb.conn.QueryRowContext(ctx,
		`SELECT `+recordColumns+`, `+isAppliedColumn+`
		 FROM records
		 WHERE id = ?`,
		viewerID, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("record", id)
		}
		return nil, fmt.Errorf("sqlite: getting record %s: %w", id, err)
	}

	return record, nil
}

// List returns records newest first.
//
// The isApplied flag is computed in the same query with a correlated EXISTS,
// so listing N records is one round trip, not N+1.
func (rdb *RecordDB) List(ctx context.Context, viewerID string, opts repository.ListOptions) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + `, ` + isAppliedColumn + ` FROM records`
	args := []any{viewerID}

	if opts.OwnerID != "" {
		query += ` WHERE owner_user_id = ?`
		args = append(args, opts.OwnerID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	// SQLite needs a LIMIT before OFFSET; -1 means "no limit".
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := rdb.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing records: %w", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning record row: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating records: %w", err)
	}

	return records, nil
}

// Update writes the mutable fields of record.
//
// OWNERSHIP IN THE WHERE CLAUSE:
// The owner is part of the match, so a caller who does not own the record
// affects zero rows and gets the same NotFound as for a missing id. The API
// never reveals that someone else's record exists.
func (rdb *RecordDB) Update(ctx context.Context, record *model.Record) error {
	record.UpdatedAt = time.Now()

	result, err := rdb.conn.ExecContext(ctx,
		`UPDATE records
		 SET company = ?, employment_type = ?, job_title = ?, applied_date = ?,
		     website_link = ?, comment = ?, received_interview = ?,
		     received_offer = ?, updated_at = ?
		 WHERE id = ? AND owner_user_id = ?`,
		record.Company,
		record.EmploymentType,
		record.JobTitle,
		record.AppliedDate,
		record.WebsiteLink,
		record.Comment,
		nullBool(record.ReceivedInterview),
		nullBool(record.ReceivedOffer),
		record.UpdatedAt,
		record.ID,
		record.OwnerUserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating record %s: %w", record.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("record", record.ID)
	}

	return nil
}

// Delete removes a record owned by ownerID. Applications to it go with it
// (ON DELETE CASCADE).
func (rdb *RecordDB) Delete(ctx context.Context, id, ownerID string) error {
	result, err := rdb.conn.ExecContext(ctx,
		`DELETE FROM records WHERE id = ? AND owner_user_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting record %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("record", id)
	}

	return nil
}

// IncrementClick adds one to click_count and returns the updated row.
//
// ATOMICITY:
// "click_count = click_count + 1" is evaluated by SQLite inside a single
// statement, so concurrent callers can't lose updates the way a
// read-modify-write in Go would. The UPDATE and the read-back share a
// transaction so the returned count is exactly the one this call produced.
// IsApplied is left false because this route is anonymous.
func (rdb *RecordDB) IncrementClick(ctx context.Context, id string) (*model.Record, error) {
	tx, err := rdb.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning click transaction: %w", err)
	}
	// Rollback after Commit is a no-op, so this is safe on every path.
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE records SET click_count = click_count + 1, updated_at = ? WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: incrementing clicks on record %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("record", id)
	}

	record, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+`, 0 FROM records WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading record %s after click: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing click on record %s: %w", id, err)
	}

	return record, nil
}
