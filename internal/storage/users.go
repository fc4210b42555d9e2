package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail looks a user up by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email = ? COLLATE NOCASE AND email != ''`, email)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (User, error) {
	var u User
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile_id, email, password_hash, verified, profile_json, created_at, updated_at
		FROM users `+where, arg,
	).Scan(&u.ID, &u.ProfileID, &u.Email, &u.PasswordHash, &u.Verified, &u.ProfileJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return User{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return u, nil
}

// SaveUser inserts or replaces a user document. CreatedAt is kept from the
// first insert.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.ProfileJSON == "" {
		u.ProfileJSON = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, profile_id, email, password_hash, verified, profile_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile_id = excluded.profile_id,
			email = excluded.email,
			password_hash = CASE WHEN excluded.password_hash = '' THEN users.password_hash ELSE excluded.password_hash END,
			verified = excluded.verified,
			profile_json = excluded.profile_json,
			updated_at = excluded.updated_at`,
		u.ID, u.ProfileID, u.Email, u.PasswordHash, u.Verified, u.ProfileJSON, formatTime(u.CreatedAt), formatTime(now),
	)
	return err
}
