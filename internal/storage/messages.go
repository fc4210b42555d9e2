package storage

import (
	"context"
	"fmt"
)

func (s *Store) SaveMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, sender_name, type, body, profile_card, job_id, job_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.SenderName, m.Type, m.Body, m.ProfileCard, m.JobID, m.JobTitle,
		formatTime(m.CreatedAt),
	)
	return err
}

// ListMessages returns the newest messages addressed to receiverID.
func (s *Store) ListMessages(ctx context.Context, receiverID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, sender_name, type, body, profile_card, job_id, job_title, created_at
		FROM messages WHERE receiver_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		receiverID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.SenderName, &m.Type, &m.Body, &m.ProfileCard,
			&m.JobID, &m.JobTitle, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
