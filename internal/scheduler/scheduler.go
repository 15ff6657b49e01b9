// Package scheduler keeps one recurring refresh job alive per source
// feed. The jobs reschedule themselves after each run; the scheduler's
// job is to seed the queue at startup and to drain it at shutdown.
package scheduler

import (
	"context"
	"time"

	"babelfeed/internal/logger"
	"babelfeed/internal/queue"
	"babelfeed/internal/repository"
	"babelfeed/internal/service"
)

type Scheduler struct {
	sources   repository.SourceFeedRepository
	queue     *queue.Queue
	refresher *service.RefreshService
}

func New(sources repository.SourceFeedRepository, q *queue.Queue, refresher *service.RefreshService) *Scheduler {
	return &Scheduler{sources: sources, queue: q, refresher: refresher}
}

// Start registers the pipeline handlers, seeds a refresh job for every
// source feed that does not have one, and starts the workers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.queue.Register(service.KindRefreshSource, s.refresher.RefreshSource)
	s.queue.Register(service.KindRefreshTranslated, s.refresher.RefreshTranslated)

	if err := s.reconcile(ctx); err != nil {
		return err
	}
	s.queue.Start()
	return nil
}

// reconcile enqueues one refresh job per source feed at its configured
// period, skipping feeds that already have one scheduled or pending.
func (s *Scheduler) reconcile(ctx context.Context) error {
	feeds, err := s.sources.List(ctx)
	if err != nil {
		return err
	}

	seeded := 0
	for _, feed := range feeds {
		if s.queue.HasJob(service.KindRefreshSource, feed.SID) {
			continue
		}
		s.queue.Schedule(service.KindRefreshSource, feed.SID, time.Duration(feed.UpdatePeriod)*time.Minute)
		seeded++
	}
	logger.Info("scheduler seeded", "module", "scheduler", "action", "reconcile", "resource", "source_feed", "result", "ok", "feeds", len(feeds), "seeded", seeded)
	return nil
}

// Stop drains the queue. Pending jobs are discarded; the next startup
// reconcile recreates them.
func (s *Scheduler) Stop() {
	s.queue.Flush()
	s.queue.Stop()
}
