// Package pgstore implements storage.Repository on PostgreSQL through pgxpool.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kalambet/jobboard/internal/db"
	"github.com/kalambet/jobboard/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a storage.Repository backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// Open connects to databaseURL and applies pending goose migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := db.NewPostgresPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies the embedded migrations using goose over a database/sql
// view of the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- postings ---

const postingColumns = `id, author_id, profile_id, title, company, description, responsibilities,
	salary, hourly, employment_type, location, skills, benefits, category, created_at`

func scanPosting(row pgx.Row) (storage.Posting, error) {
	var p storage.Posting
	err := row.Scan(&p.ID, &p.AuthorID, &p.ProfileID, &p.Title, &p.Company, &p.Description, &p.Responsibilities,
		&p.Salary, &p.Hourly, &p.EmploymentType, &p.Location, &p.Skills, &p.Benefits, &p.Category, &p.CreatedAt)
	return p, err
}

func skillsOrEmpty(skills []string) []string {
	if skills == nil {
		return []string{}
	}
	return skills
}

func categoryOrDefault(c string) string {
	if c == "" {
		return storage.DefaultCategory
	}
	return c
}

func (s *Store) CreatePosting(ctx context.Context, p storage.Posting) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO postings (`+postingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.AuthorID, p.ProfileID, p.Title, p.Company, p.Description, p.Responsibilities,
		p.Salary, p.Hourly, p.EmploymentType, p.Location, skillsOrEmpty(p.Skills), p.Benefits,
		categoryOrDefault(p.Category), p.CreatedAt.UTC(),
	)
	return err
}

func (s *Store) GetPosting(ctx context.Context, id string) (storage.Posting, error) {
	p, err := scanPosting(s.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = $1`, id))
	return p, notFound(err)
}

func (s *Store) UpdatePosting(ctx context.Context, p storage.Posting) error {
	return expectOne(s.pool.Exec(ctx, `
		UPDATE postings SET title = $1, company = $2, description = $3, responsibilities = $4,
			salary = $5, hourly = $6, employment_type = $7, location = $8, skills = $9, benefits = $10, category = $11
		WHERE id = $12`,
		p.Title, p.Company, p.Description, p.Responsibilities,
		p.Salary, p.Hourly, p.EmploymentType, p.Location, skillsOrEmpty(p.Skills), p.Benefits,
		categoryOrDefault(p.Category), p.ID,
	))
}

func (s *Store) DeletePosting(ctx context.Context, id string) error {
	return expectOne(s.pool.Exec(ctx, `DELETE FROM postings WHERE id = $1`, id))
}

func (s *Store) ListPostings(ctx context.Context) ([]storage.Posting, error) {
	return s.queryPostings(ctx, `SELECT `+postingColumns+` FROM postings ORDER BY created_at DESC, id DESC`)
}

func (s *Store) ListPostingsByAuthor(ctx context.Context, authorID string) ([]storage.Posting, error) {
	return s.queryPostings(ctx, `SELECT `+postingColumns+` FROM postings WHERE author_id = $1 ORDER BY created_at DESC, id DESC`, authorID)
}

func (s *Store) queryPostings(ctx context.Context, query string, args ...any) ([]storage.Posting, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- watch records ---

func (s *Store) GetWatchRecord(ctx context.Context, userID, jobID string) (storage.WatchRecord, error) {
	var r storage.WatchRecord
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, job_id, followed, created_at FROM watch_records
		WHERE user_id = $1 AND job_id = $2`, userID, jobID,
	).Scan(&r.UserID, &r.JobID, &r.Followed, &r.CreatedAt)
	return r, notFound(err)
}

func (s *Store) CreateWatchRecord(ctx context.Context, r storage.WatchRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_records (user_id, job_id, followed, created_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (user_id, job_id) DO NOTHING`,
		r.UserID, r.JobID, r.CreatedAt.UTC(),
	)
	return err
}

func (s *Store) DeleteWatchRecord(ctx context.Context, userID, jobID string) error {
	return expectOne(s.pool.Exec(ctx, `DELETE FROM watch_records WHERE user_id = $1 AND job_id = $2`, userID, jobID))
}

func (s *Store) ListWatchRecords(ctx context.Context, userID string) ([]storage.WatchRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, job_id, followed, created_at FROM watch_records
		WHERE user_id = $1 ORDER BY created_at ASC, seq ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.WatchRecord
	for rows.Next() {
		var r storage.WatchRecord
		if err := rows.Scan(&r.UserID, &r.JobID, &r.Followed, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) ListWatchersOf(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM watch_records WHERE job_id = $1 ORDER BY user_id`, jobID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) DeleteOrphanWatchRecords(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM watch_records w
		WHERE NOT EXISTS (SELECT 1 FROM postings p WHERE p.id = w.job_id)
		RETURNING w.user_id`)
	if err != nil {
		return nil, fmt.Errorf("deleting orphans: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("deleting orphans: %w", err)
	}
	return distinctSorted(owners), nil
}

func distinctSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// --- users ---

func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (storage.User, error) {
	return s.getUser(ctx, `WHERE lower(email) = lower($1) AND email <> ''`, email)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (storage.User, error) {
	var u storage.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, profile_id, email, password_hash, verified, profile_json::text, created_at, updated_at
		FROM users `+where, arg,
	).Scan(&u.ID, &u.ProfileID, &u.Email, &u.PasswordHash, &u.Verified, &u.ProfileJSON, &u.CreatedAt, &u.UpdatedAt)
	return u, notFound(err)
}

func (s *Store) SaveUser(ctx context.Context, u storage.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.ProfileJSON == "" {
		u.ProfileJSON = "{}"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, profile_id, email, password_hash, verified, profile_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			email = EXCLUDED.email,
			password_hash = COALESCE(NULLIF(EXCLUDED.password_hash, ''), users.password_hash),
			verified = EXCLUDED.verified,
			profile_json = EXCLUDED.profile_json,
			updated_at = EXCLUDED.updated_at`,
		u.ID, u.ProfileID, u.Email, u.PasswordHash, u.Verified, u.ProfileJSON, u.CreatedAt.UTC(), now,
	)
	return err
}

// --- messages ---

func (s *Store) SaveMessage(ctx context.Context, m storage.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, sender_name, type, body, profile_card, job_id, job_title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.SenderID, m.ReceiverID, m.SenderName, m.Type, m.Body, m.ProfileCard, m.JobID, m.JobTitle, m.CreatedAt.UTC(),
	)
	return err
}

func (s *Store) ListMessages(ctx context.Context, receiverID string, limit int) ([]storage.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, sender_name, type, body, profile_card, job_id, job_title, created_at
		FROM messages WHERE receiver_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		receiverID, limit,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Message, error) {
		var m storage.Message
		err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.SenderName, &m.Type, &m.Body, &m.ProfileCard,
			&m.JobID, &m.JobTitle, &m.CreatedAt)
		return m, err
	})
}

// --- job queue ---

func (s *Store) EnqueueJob(ctx context.Context, job storage.Job) error {
	now := time.Now().UTC()
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC()
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = storage.DefaultMaxAttempts
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, $4, $5, $6, $6)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now,
	)
	return err
}

// ClaimNextJob uses SKIP LOCKED so several workers can share the queue.
func (s *Store) ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	var j storage.Job
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_after <= now() AND type = ANY($1)
			ORDER BY run_after ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`,
		types,
	).Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts, &j.RunAfter, &j.CreatedAt, &j.UpdatedAt, &j.LastError)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(ctx context.Context, id string) error {
	return expectOne(s.pool.Exec(ctx, `UPDATE jobs SET status = 'completed', updated_at = now() WHERE id = $1`, id))
}

func (s *Store) FailJob(ctx context.Context, id string, errMsg string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var attempts, maxAttempts int
		err := tx.QueryRow(ctx, `SELECT attempts, max_attempts FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&attempts, &maxAttempts)
		if err != nil {
			return notFound(err)
		}

		now := time.Now().UTC()
		attempts++
		if attempts >= maxAttempts {
			_, err = tx.Exec(ctx, `UPDATE jobs SET status = 'failed', attempts = $1, last_error = $2, updated_at = $3 WHERE id = $4`,
				attempts, errMsg, now, id)
		} else {
			_, err = tx.Exec(ctx, `UPDATE jobs SET status = 'pending', attempts = $1, last_error = $2, run_after = $3, updated_at = $4 WHERE id = $5`,
				attempts, errMsg, now.Add(storage.Backoff(attempts)), now, id)
		}
		return err
	})
}
