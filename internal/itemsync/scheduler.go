package itemsync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler periodically queues syncs for active items that have not been
// synced within the interval.
type Scheduler struct {
	service  *Service
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewScheduler(service *Service, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run checks for due items once at start and then every interval until ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("SyncScheduler.Run.disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval.String()).Info("SyncScheduler.Run.started")
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("SyncScheduler.Run.stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce queues every due item and returns how many were queued.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	queued, err := s.service.EnqueueDue(ctx, s.now().Add(-s.interval))
	if err != nil {
		s.log.WithError(err).WithField("queued", queued).Error("SyncScheduler.RunOnce.Error")
		return queued
	}
	if queued > 0 {
		s.log.WithField("queued", queued).Info("SyncScheduler.RunOnce.queued")
	}
	return queued
}
