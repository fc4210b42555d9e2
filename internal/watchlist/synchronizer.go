package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/jobboard/internal/session"
	"github.com/kalambet/jobboard/internal/storage"
)

// Store is the subset of storage.Repository the synchronizer uses.
type Store interface {
	GetPosting(ctx context.Context, id string) (storage.Posting, error)
	GetWatchRecord(ctx context.Context, userID, jobID string) (storage.WatchRecord, error)
	CreateWatchRecord(ctx context.Context, r storage.WatchRecord) error
	DeleteWatchRecord(ctx context.Context, userID, jobID string) error
	ListWatchRecords(ctx context.Context, userID string) ([]storage.WatchRecord, error)
}

// DefaultConcurrency bounds parallel posting fetches during hydration.
const DefaultConcurrency = 8

// Options tune a Synchronizer. Zero values select defaults.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
	Now         func() time.Time
}

// Outcome describes what a Toggle did.
type Outcome int

const (
	Ignored Outcome = iota // no session
	Added
	Removed
	Failed // store error, logged
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Failed:
		return "failed"
	default:
		return "ignored"
	}
}

// Synchronizer publishes the watch list of one user at a time.
//
// The list is a reducer over two event sources: snapshots re-derived from
// the store after every feed notification, and optimistic edits made by
// Toggle. Each event takes a sequence number when it starts and is applied
// only if no later event has been applied already, so a slow snapshot never
// overwrites a newer edit. The next notification corrects any drift.
type Synchronizer struct {
	store       Store
	feed        Feed
	logger      *slog.Logger
	now         func() time.Time
	concurrency int

	mu        sync.Mutex
	userID    string
	bound     *binding
	items     []WatchedJob
	seq       uint64
	applied   uint64
	ready     chan struct{}
	readyOnce *sync.Once
	listeners map[chan []WatchedJob]struct{}
}

// binding is one Subscribe call. Its cycles mark only its own ready channel
// and its teardown is a no-op once a newer binding has replaced it.
type binding struct {
	userID string
	cancel context.CancelFunc
	ready  chan struct{}
	once   *sync.Once
}

// New creates an idle Synchronizer. Call Subscribe to bind it to a user.
func New(store Store, feed Feed, opts Options) *Synchronizer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synchronizer{
		store:       store,
		feed:        feed,
		logger:      opts.Logger,
		now:         opts.Now,
		concurrency: opts.Concurrency,
		ready:       make(chan struct{}),
		readyOnce:   &sync.Once{},
		listeners:   make(map[chan []WatchedJob]struct{}),
	}
}

// Subscribe binds the synchronizer to sess's user, performs the initial load
// in the background and keeps the list current until ctx is done, at which
// point the list is torn down. A signed-out session only clears the list.
// Any previous binding is cancelled.
func (s *Synchronizer) Subscribe(ctx context.Context, sess session.Session) error {
	if !sess.Valid() {
		s.mu.Lock()
		b := s.bound
		s.mu.Unlock()
		if b != nil {
			b.cancel()
			s.teardown(b)
		}
		return nil
	}

	bctx, bcancel := context.WithCancel(ctx)
	notes, unsubscribe, err := s.feed.Subscribe(bctx, WatchTopic(sess.UserID))
	if err != nil {
		bcancel()
		return fmt.Errorf("subscribing to watch feed: %w", err)
	}

	s.mu.Lock()
	prev := s.bound
	if s.userID != sess.UserID {
		s.items = nil
		s.ready = make(chan struct{})
		s.readyOnce = &sync.Once{}
	}
	s.userID = sess.UserID
	b := &binding{userID: sess.UserID, cancel: bcancel, ready: s.ready, once: s.readyOnce}
	s.bound = b
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	go s.run(bctx, b, notes, unsubscribe)
	return nil
}

func (s *Synchronizer) run(ctx context.Context, b *binding, notes <-chan struct{}, unsubscribe func()) {
	defer unsubscribe()
	s.cycle(ctx, b)
	for {
		select {
		case <-ctx.Done():
			s.teardown(b)
			return
		case _, ok := <-notes:
			if !ok {
				return
			}
			s.cycle(ctx, b)
		}
	}
}

func (s *Synchronizer) cycle(ctx context.Context, b *binding) {
	if err := s.refresh(ctx, b.userID); err != nil && ctx.Err() == nil {
		s.logger.Warn("watch list refresh failed, keeping last list", "user_id", b.userID, "error", err)
	}
	b.once.Do(func() { close(b.ready) })
}

// refresh re-derives the list from the store. Orphaned records are deleted
// and skipped. Any other store error aborts the cycle.
func (s *Synchronizer) refresh(ctx context.Context, userID string) error {
	seq := s.begin()

	recs, err := s.store.ListWatchRecords(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing watch records: %w", err)
	}
	views, err := s.hydrate(ctx, recs)
	if err != nil {
		return err
	}
	s.apply(seq, userID, func([]WatchedJob) []WatchedJob { return views })
	return nil
}

func (s *Synchronizer) hydrate(ctx context.Context, recs []storage.WatchRecord) ([]WatchedJob, error) {
	results := make([]*WatchedJob, len(recs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			p, err := s.store.GetPosting(gCtx, rec.JobID)
			if errors.Is(err, storage.ErrNotFound) {
				s.pruneOrphan(gCtx, rec)
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetching posting %s: %w", rec.JobID, err)
			}
			v := newView(p, rec)
			results[i] = &v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]WatchedJob, 0, len(recs))
	for _, v := range results {
		if v != nil && indexOf(views, v.ID) < 0 {
			views = append(views, *v)
		}
	}
	return views, nil
}

func (s *Synchronizer) pruneOrphan(ctx context.Context, rec storage.WatchRecord) {
	err := s.store.DeleteWatchRecord(ctx, rec.UserID, rec.JobID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("deleting orphaned watch record", "user_id", rec.UserID, "job_id", rec.JobID, "error", err)
		return
	}
	s.logger.Debug("pruned orphaned watch record", "user_id", rec.UserID, "job_id", rec.JobID)
}

// Toggle watches jobID for sess's user, or unwatches it if already watched.
// Store errors are logged and reported as Failed; they are never returned.
func (s *Synchronizer) Toggle(ctx context.Context, sess session.Session, jobID string) Outcome {
	if !sess.Valid() {
		return Ignored
	}
	userID := sess.UserID
	log := s.logger.With("user_id", userID, "job_id", jobID)

	_, err := s.store.GetWatchRecord(ctx, userID, jobID)
	switch {
	case err == nil:
		if err := s.store.DeleteWatchRecord(ctx, userID, jobID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Error("unwatching job", "error", err)
			return Failed
		}
		seq := s.begin()
		s.apply(seq, userID, func(items []WatchedJob) []WatchedJob {
			if i := indexOf(items, jobID); i >= 0 {
				return append(items[:i:i], items[i+1:]...)
			}
			return items
		})
		s.publish(ctx, userID)
		return Removed

	case errors.Is(err, storage.ErrNotFound):
		rec := storage.WatchRecord{UserID: userID, JobID: jobID, Followed: true, CreatedAt: s.now().UTC()}
		if err := s.store.CreateWatchRecord(ctx, rec); err != nil {
			log.Error("watching job", "error", err)
			return Failed
		}
		seq := s.begin()
		p, err := s.store.GetPosting(ctx, jobID)
		if err != nil {
			// The record stays; the next refresh hydrates or prunes it.
			log.Warn("fetching watched job", "error", err)
		} else {
			view := newView(p, rec)
			s.apply(seq, userID, func(items []WatchedJob) []WatchedJob {
				if indexOf(items, jobID) >= 0 {
					return items
				}
				return append(items, view)
			})
		}
		s.publish(ctx, userID)
		return Added

	default:
		log.Error("checking watch record", "error", err)
		return Failed
	}
}

func (s *Synchronizer) publish(ctx context.Context, userID string) {
	if err := s.feed.Publish(ctx, WatchTopic(userID)); err != nil {
		s.logger.Warn("publishing watch change", "user_id", userID, "error", err)
	}
}

func (s *Synchronizer) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply runs fn on the published list if seq is not older than the last
// applied event and the synchronizer is still bound to userID.
func (s *Synchronizer) apply(seq uint64, userID string, fn func([]WatchedJob) []WatchedJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied || userID != s.userID {
		return false
	}
	s.applied = seq
	s.items = fn(cloneViews(s.items))
	s.notifyLocked()
	return true
}

func (s *Synchronizer) teardown(b *binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != b {
		return
	}
	s.bound = nil
	s.userID = ""
	s.items = nil
	s.notifyLocked()
}

func (s *Synchronizer) notifyLocked() {
	snap := cloneViews(s.items)
	for ch := range s.listeners {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// UserID returns the user the synchronizer is bound to, or "".
func (s *Synchronizer) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// List returns a copy of the published list.
func (s *Synchronizer) List() []WatchedJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneViews(s.items)
}

// Wait blocks until the first refresh after Subscribe has finished.
func (s *Synchronizer) Wait(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates registers a listener that receives the list after every change.
// Only the newest unread snapshot is kept. The returned func unregisters it.
func (s *Synchronizer) Updates() (<-chan []WatchedJob, func()) {
	ch := make(chan []WatchedJob, 1)
	s.mu.Lock()
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, ch)
			s.mu.Unlock()
		})
	}
}
