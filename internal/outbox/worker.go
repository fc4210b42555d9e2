// Package outbox delivers side effects of store mutations through the
// durable job queue.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/watchlist"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Publisher sends change notifications. Implemented by watchlist feeds.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// PostingRemoved is the payload of a posting_removed job.
type PostingRemoved struct {
	JobID    string   `json:"job_id"`
	Watchers []string `json:"watchers"`
}

// MessageSent is the payload of a message_sent job.
type MessageSent struct {
	MessageID  string `json:"message_id"`
	ReceiverID string `json:"receiver_id"`
}

// EnqueuePostingRemoved queues notifications for everyone watching a
// deleted posting.
func EnqueuePostingRemoved(ctx context.Context, q JobStore, jobID string, watchers []string) error {
	return enqueue(ctx, q, storage.JobPostingRemoved, PostingRemoved{JobID: jobID, Watchers: watchers})
}

// EnqueueMessageSent queues an inbox notification for a new message.
func EnqueueMessageSent(ctx context.Context, q JobStore, m storage.Message) error {
	return enqueue(ctx, q, storage.JobMessageSent, MessageSent{MessageID: m.ID, ReceiverID: m.ReceiverID})
}

func enqueue(ctx context.Context, q JobStore, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %s payload: %w", jobType, err)
	}
	job := storage.Job{ID: uuid.NewString(), Type: jobType, PayloadJSON: string(data)}
	if err := q.EnqueueJob(ctx, job); err != nil {
		return fmt.Errorf("enqueueing %s: %w", jobType, err)
	}
	return nil
}

// Worker processes outbox jobs from the queue.
type Worker struct {
	store  JobStore
	feed   Publisher
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, feed Publisher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		feed:   feed,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

var jobTypes = []string{storage.JobPostingRemoved, storage.JobMessageSent}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("outbox iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, jobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("outbox job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case storage.JobPostingRemoved:
		var p PostingRemoved
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		var errs []error
		for _, userID := range p.Watchers {
			if err := w.feed.Publish(ctx, watchlist.WatchTopic(userID)); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case storage.JobMessageSent:
		var m MessageSent
		if err := json.Unmarshal([]byte(job.PayloadJSON), &m); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.feed.Publish(ctx, watchlist.InboxTopic(m.ReceiverID))

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
