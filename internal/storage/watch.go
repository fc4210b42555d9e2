package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *Store) GetWatchRecord(ctx context.Context, userID, jobID string) (WatchRecord, error) {
	var r WatchRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, job_id, followed, created_at FROM watch_records
		WHERE user_id = ? AND job_id = ?`, userID, jobID,
	).Scan(&r.UserID, &r.JobID, &r.Followed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WatchRecord{}, ErrNotFound
	}
	if err != nil {
		return WatchRecord{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return WatchRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}

// CreateWatchRecord inserts a record. Inserting a pair that already exists
// is not an error.
func (s *Store) CreateWatchRecord(ctx context.Context, r WatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_records (user_id, job_id, followed, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, job_id) DO NOTHING`,
		r.UserID, r.JobID, formatTime(r.CreatedAt),
	)
	return err
}

func (s *Store) DeleteWatchRecord(ctx context.Context, userID, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watch_records WHERE user_id = ? AND job_id = ?`, userID, jobID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ListWatchRecords returns a user's records in the order they were created.
func (s *Store) ListWatchRecords(ctx context.Context, userID string) ([]WatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, job_id, followed, created_at FROM watch_records
		WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WatchRecord
	for rows.Next() {
		var r WatchRecord
		var createdAt string
		if err := rows.Scan(&r.UserID, &r.JobID, &r.Followed, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListWatchersOf returns the ids of users watching jobID.
func (s *Store) ListWatchersOf(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM watch_records WHERE job_id = ? ORDER BY user_id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// DeleteOrphanWatchRecords removes records whose posting no longer exists
// and returns the distinct owners that lost at least one record.
func (s *Store) DeleteOrphanWatchRecords(ctx context.Context) ([]string, error) {
	var users []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT user_id FROM watch_records
			WHERE job_id NOT IN (SELECT id FROM postings) ORDER BY user_id`)
		if err != nil {
			return fmt.Errorf("selecting orphan owners: %w", err)
		}
		users, err = scanStrings(rows)
		rows.Close()
		if err != nil {
			return fmt.Errorf("scanning orphan owners: %w", err)
		}
		if len(users) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM watch_records WHERE job_id NOT IN (SELECT id FROM postings)`); err != nil {
			return fmt.Errorf("deleting orphans: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
