// Package sweeper periodically deletes watch records whose posting is gone
// and tells the affected users' watch lists to refresh.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/kalambet/jobboard/internal/watchlist"
)

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "@every 1h"

// OrphanStore deletes orphaned watch records and reports their owners.
type OrphanStore interface {
	DeleteOrphanWatchRecords(ctx context.Context) ([]string, error)
}

// Publisher sends change notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// Sweeper wraps robfig/cron and manages the sweep loop.
type Sweeper struct {
	cron   *cron.Cron
	store  OrphanStore
	feed   Publisher
	spec   string
	logger *slog.Logger
}

// New creates a Sweeper firing on spec, a robfig/cron schedule such as
// "@every 30m" or "0 * * * *". An empty spec selects DefaultSchedule.
func New(store OrphanStore, feed Publisher, spec string) *Sweeper {
	if spec == "" {
		spec = DefaultSchedule
	}
	logger := slog.Default()
	cl := cronLogger{logger: logger}
	return &Sweeper{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		store:  store,
		feed:   feed,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the sweep and starts the scheduler. It also sweeps once
// immediately without waiting for the first tick.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduling sweep %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("orphan sweeper started", "schedule", s.spec)

	go s.RunOnce(ctx)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("orphan sweeper stopped")
}

// RunOnce deletes orphans and notifies their owners. It returns the
// affected users.
func (s *Sweeper) RunOnce(ctx context.Context) []string {
	users, err := s.store.DeleteOrphanWatchRecords(ctx)
	if err != nil {
		s.logger.Error("orphan sweep failed", "error", err)
		return nil
	}
	for _, userID := range users {
		if err := s.feed.Publish(ctx, watchlist.WatchTopic(userID)); err != nil {
			s.logger.Warn("publishing sweep result", "user_id", userID, "error", err)
		}
	}
	if len(users) > 0 {
		s.logger.Info("orphan sweep complete", "users", len(users))
	}
	return users
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
