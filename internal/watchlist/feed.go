package watchlist

import (
	"context"
	"sync"
)

// Feed delivers change notifications for a topic. A notification carries no
// payload; subscribers re-read whatever the topic covers.
type Feed interface {
	Publish(ctx context.Context, topic string) error
	// Subscribe returns a channel that receives at least one value after
	// every Publish on topic. Bursts may be coalesced. The returned func
	// ends the subscription and closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
}

// WatchTopic is the topic for changes to userID's watch records.
func WatchTopic(userID string) string { return "watch:" + userID }

// InboxTopic is the topic for new messages addressed to userID.
func InboxTopic(userID string) string { return "inbox:" + userID }

// LocalFeed is an in-process Feed.
type LocalFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[chan struct{}]struct{})}
}

func (f *LocalFeed) Publish(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context, topic string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	f.mu.Lock()
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[chan struct{}]struct{})
	}
	f.subs[topic][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[topic], ch)
			if len(f.subs[topic]) == 0 {
				delete(f.subs, topic)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}

// subscribers reports how many subscriptions topic has.
func (f *LocalFeed) subscribers(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[topic])
}
