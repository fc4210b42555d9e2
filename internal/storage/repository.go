package storage

import "context"

// Repository is the persistence surface shared by the SQLite Store and the
// Postgres store in storage/pgstore.
type Repository interface {
	CreatePosting(ctx context.Context, p Posting) error
	GetPosting(ctx context.Context, id string) (Posting, error)
	UpdatePosting(ctx context.Context, p Posting) error
	DeletePosting(ctx context.Context, id string) error
	ListPostings(ctx context.Context) ([]Posting, error)
	ListPostingsByAuthor(ctx context.Context, authorID string) ([]Posting, error)

	GetWatchRecord(ctx context.Context, userID, jobID string) (WatchRecord, error)
	CreateWatchRecord(ctx context.Context, r WatchRecord) error
	DeleteWatchRecord(ctx context.Context, userID, jobID string) error
	ListWatchRecords(ctx context.Context, userID string) ([]WatchRecord, error)
	ListWatchersOf(ctx context.Context, jobID string) ([]string, error)
	DeleteOrphanWatchRecords(ctx context.Context) ([]string, error)

	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	SaveUser(ctx context.Context, u User) error

	SaveMessage(ctx context.Context, m Message) error
	ListMessages(ctx context.Context, receiverID string, limit int) ([]Message, error)

	EnqueueJob(ctx context.Context, job Job) error
	ClaimNextJob(ctx context.Context, types []string) (*Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error

	Close() error
}

var _ Repository = (*Store)(nil)
