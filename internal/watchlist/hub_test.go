package watchlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/jobboard/internal/session"
	"github.com/kalambet/jobboard/internal/storage"
)

func sessionFor(userID string) session.Session {
	return session.New(userID)
}

func TestHub_SharesSynchronizerPerUser(t *testing.T) {
	st := newStore(t)
	addPosting(t, st, "p1", "Nursing")
	require.NoError(t, st.CreateWatchRecord(context.Background(), storage.WatchRecord{UserID: "u1", JobID: "p1", CreatedAt: time.Now()}))

	feed := NewLocalFeed()
	h := NewHub(st, feed, Options{})
	defer h.Close()

	s1, release1, err := h.Acquire(sessionFor("u1"))
	require.NoError(t, err)
	s2, release2, err := h.Acquire(sessionFor("u1"))
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	other, releaseOther, err := h.Acquire(sessionFor("u2"))
	require.NoError(t, err)
	assert.NotSame(t, s1, other)
	assert.Equal(t, 2, h.Active())

	require.NoError(t, s1.Wait(context.Background()))
	assert.Len(t, s1.List(), 1)

	release1()
	release1()
	assert.Equal(t, 2, h.Active())
	release2()
	releaseOther()
	assert.Equal(t, 0, h.Active())
	require.Eventually(t, func() bool { return feed.subscribers(WatchTopic("u1")) == 0 }, waitFor, tick)
}

func TestHub_RejectsSignedOut(t *testing.T) {
	h := NewHub(newStore(t), NewLocalFeed(), Options{})
	defer h.Close()
	_, _, err := h.Acquire(session.Session{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestHub_Closed(t *testing.T) {
	h := NewHub(newStore(t), NewLocalFeed(), Options{})
	h.Close()
	_, _, err := h.Acquire(sessionFor("u1"))
	assert.ErrorIs(t, err, ErrHubClosed)
}

// stallingFeed blocks Subscribe on one topic until release is closed.
type stallingFeed struct {
	*LocalFeed
	topic   string
	entered chan struct{}
	release chan struct{}
}

func (f *stallingFeed) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	if topic == f.topic {
		close(f.entered)
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	return f.LocalFeed.Subscribe(ctx, topic)
}

func TestHub_SlowSubscribeDoesNotBlockOtherUsers(t *testing.T) {
	feed := &stallingFeed{
		LocalFeed: NewLocalFeed(),
		topic:     WatchTopic("slow"),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	h := NewHub(newStore(t), feed, Options{})
	defer h.Close()

	slowDone := make(chan error, 1)
	go func() {
		_, release, err := h.Acquire(sessionFor("slow"))
		if err == nil {
			release()
		}
		slowDone <- err
	}()
	<-feed.entered

	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		s, release, err := h.Acquire(sessionFor("fast"))
		if assert.NoError(t, err) {
			assert.Equal(t, "fast", s.UserID())
			release()
		}
	}()
	select {
	case <-fastDone:
	case <-time.After(waitFor):
		t.Fatal("Acquire for another user waited on a pending feed subscription")
	}
	assert.Equal(t, 1, h.Active(), "only the pending user remains")

	close(feed.release)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 0, h.Active())
}
