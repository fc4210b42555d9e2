package watchlist

import (
	"context"
	"errors"
	"sync"

	"github.com/kalambet/jobboard/internal/session"
)

var (
	ErrHubClosed = errors.New("watchlist hub closed")
	ErrNoSession = errors.New("no signed-in user")
)

// Hub owns one Synchronizer per active user. A synchronizer is created on
// the first Acquire for its user and torn down after the last Release.
type Hub struct {
	store Store
	feed  Feed
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*hubEntry
	closed  bool
}

type hubEntry struct {
	syncer *Synchronizer
	refs   int
	cancel context.CancelFunc

	// init is closed once the feed subscription has finished; err is set
	// before that if it failed.
	init chan struct{}
	err  error
}

func NewHub(store Store, feed Feed, opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:   store,
		feed:    feed,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*hubEntry),
	}
}

// Acquire returns the synchronizer for sess's user and a release func that
// must be called once the caller is done with it. The feed subscription of
// a new user runs outside the hub lock; concurrent Acquires for that user
// wait for it.
func (h *Hub) Acquire(sess session.Session) (*Synchronizer, func(), error) {
	if !sess.Valid() {
		return nil, nil, ErrNoSession
	}
	userID := sess.UserID

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, ErrHubClosed
	}
	e, ok := h.entries[userID]
	if !ok {
		e = &hubEntry{init: make(chan struct{})}
		h.entries[userID] = e
	}
	e.refs++
	h.mu.Unlock()

	if !ok {
		h.start(sess, e)
	}
	<-e.init
	if e.err != nil {
		return nil, nil, e.err
	}

	var once sync.Once
	release := func() {
		once.Do(func() { h.release(userID, e) })
	}
	return e.syncer, release, nil
}

func (h *Hub) start(sess session.Session, e *hubEntry) {
	defer close(e.init)

	ctx, cancel := context.WithCancel(h.ctx)
	s := New(h.store, h.feed, h.opts)
	err := s.Subscribe(ctx, sess)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil && h.closed {
		err = ErrHubClosed
	}
	if err != nil {
		cancel()
		e.err = err
		if h.entries[sess.UserID] == e {
			delete(h.entries, sess.UserID)
		}
		return
	}
	e.syncer = s
	e.cancel = cancel
}

func (h *Hub) release(userID string, e *hubEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	e.cancel()
	if h.entries[userID] == e {
		delete(h.entries, userID)
	}
}

// Active returns the number of users with a live synchronizer.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Close tears down every synchronizer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.cancel()
	h.entries = make(map[string]*hubEntry)
}
