package serve

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// sessionRetention is how long inactive session rows are kept before
// the nightly prune removes them.
const sessionRetention = 7 * 24 * time.Hour

// Scheduler runs periodic store maintenance on cron schedules.
type Scheduler struct {
	c     *cron.Cron
	store Store
}

// NewScheduler creates a Scheduler over the given store.
func NewScheduler(store Store) *Scheduler {
	return &Scheduler{
		c:     cron.New(),
		store: store,
	}
}

// Start registers the maintenance jobs and blocks until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.c.AddFunc("@daily", s.pruneSessions); err != nil {
		return err
	}

	s.c.Start()
	slog.Info("scheduler started")
	<-ctx.Done()
	s.c.Stop()
	slog.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) pruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.PruneSessions(ctx, sessionRetention)
	if err != nil {
		slog.Warn("scheduler: prune sessions failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("scheduler: pruned stale sessions", "count", n)
	}
}
