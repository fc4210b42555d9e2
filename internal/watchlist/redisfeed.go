package watchlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisFeed is a Feed over Redis pub/sub so that several server processes
// share notifications. Topics map to channels named "jobboard:<topic>".
type RedisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func redisChannel(topic string) string {
	return "jobboard:" + topic
}

func (f *RedisFeed) Publish(ctx context.Context, topic string) error {
	if err := f.rdb.Publish(ctx, redisChannel(topic), "changed").Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error) {
	ps := f.rdb.Subscribe(ctx, redisChannel(topic))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	out := make(chan struct{}, 1)
	msgs := ps.Channel()
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			ps.Close()
		})
	}
	return out, cancel, nil
}
