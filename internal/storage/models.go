package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a record with the same identity already exists.
var ErrConflict = errors.New("already exists")

// Posting is a single job listing.
type Posting struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id"`
	ProfileID        string    `json:"profile_id"`
	Title            string    `json:"title"`
	Company          string    `json:"company"`
	Description      string    `json:"description"`
	Responsibilities string    `json:"responsibilities,omitempty"`
	Salary           string    `json:"salary,omitempty"`
	Hourly           string    `json:"hourly,omitempty"`
	EmploymentType   string    `json:"employment_type"`
	Location         string    `json:"location"`
	Skills           []string  `json:"skills"`
	Benefits         string    `json:"benefits,omitempty"`
	Category         string    `json:"category"`
	CreatedAt        time.Time `json:"created_at"`
}

// WatchRecord marks one user's interest in one posting.
type WatchRecord struct {
	UserID    string    `json:"user_id"`
	JobID     string    `json:"job_id"`
	Followed  bool      `json:"followed"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the persisted identity of the record.
func (r WatchRecord) Key() string {
	return WatchKey(r.UserID, r.JobID)
}

// WatchKey builds the composite "<user>_<job>" identity.
func WatchKey(userID, jobID string) string {
	return userID + "_" + jobID
}

// User is the stored user document. Profile holds the JSON-encoded
// profile.UserProfile so storage stays agnostic of its shape.
type User struct {
	ID          string
	ProfileID   string
	Email       string
	Verified    bool
	ProfileJSON string
	// PasswordHash is a bcrypt hash. SaveUser keeps the stored hash when
	// it is empty.
	PasswordHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is a direct message between two users.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	SenderName  string    `json:"sender_name"`
	Type        string    `json:"type"`
	Body        string    `json:"body,omitempty"`
	ProfileCard string    `json:"profile_card,omitempty"` // JSON object stored as text
	JobID       string    `json:"job_id,omitempty"`
	JobTitle    string    `json:"job_title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Job is a unit of work in the durable queue.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
