package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const postingColumns = `id, author_id, profile_id, title, company, description, responsibilities,
	salary, hourly, employment_type, location, skills, benefits, category, created_at`

// DefaultCategory is stored when a posting has no category.
const DefaultCategory = "Other"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (Posting, error) {
	var p Posting
	var skills, createdAt string
	err := row.Scan(&p.ID, &p.AuthorID, &p.ProfileID, &p.Title, &p.Company, &p.Description, &p.Responsibilities,
		&p.Salary, &p.Hourly, &p.EmploymentType, &p.Location, &skills, &p.Benefits, &p.Category, &createdAt)
	if err != nil {
		return Posting{}, err
	}
	if skills != "" {
		if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
			return Posting{}, fmt.Errorf("parsing skills for posting %s: %w", p.ID, err)
		}
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Posting{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

func encodeSkills(skills []string) (string, error) {
	if skills == nil {
		return "[]", nil
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("marshalling skills: %w", err)
	}
	return string(b), nil
}

func (s *Store) CreatePosting(ctx context.Context, p Posting) error {
	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO postings (`+postingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AuthorID, p.ProfileID, p.Title, p.Company, p.Description, p.Responsibilities,
		p.Salary, p.Hourly, p.EmploymentType, p.Location, skills, p.Benefits, p.Category,
		formatTime(p.CreatedAt),
	)
	return err
}

func (s *Store) GetPosting(ctx context.Context, id string) (Posting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Posting{}, ErrNotFound
	}
	return p, err
}

// UpdatePosting rewrites the mutable fields of a posting. ID, author and
// creation time are never changed.
func (s *Store) UpdatePosting(ctx context.Context, p Posting) error {
	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE postings SET title = ?, company = ?, description = ?, responsibilities = ?,
			salary = ?, hourly = ?, employment_type = ?, location = ?, skills = ?, benefits = ?, category = ?
		WHERE id = ?`,
		p.Title, p.Company, p.Description, p.Responsibilities,
		p.Salary, p.Hourly, p.EmploymentType, p.Location, skills, p.Benefits, p.Category,
		p.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *Store) DeletePosting(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM postings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ListPostings returns every posting, newest first.
func (s *Store) ListPostings(ctx context.Context) ([]Posting, error) {
	return s.queryPostings(ctx, `SELECT `+postingColumns+` FROM postings ORDER BY created_at DESC, rowid DESC`)
}

func (s *Store) ListPostingsByAuthor(ctx context.Context, authorID string) ([]Posting, error) {
	return s.queryPostings(ctx, `SELECT `+postingColumns+` FROM postings WHERE author_id = ? ORDER BY created_at DESC, rowid DESC`, authorID)
}

func (s *Store) queryPostings(ctx context.Context, query string, args ...any) ([]Posting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
