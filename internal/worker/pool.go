package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/retry"
)

// Handler processes one claimed job. Returning an error asks the pool to
// retry the job while attempts remain.
//
//go:generate mockery --name Handler --output mock_Handler.go
type Handler interface {
	Process(ctx context.Context, job *jobs.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *jobs.Job) error

func (f HandlerFunc) Process(ctx context.Context, job *jobs.Job) error {
	return f(ctx, job)
}

type Config struct {
	Workers      int
	PollInterval time.Duration

	// Lease is how long a claimed job may go without a heartbeat before
	// another worker may reclaim it.
	Lease time.Duration

	// HeartbeatInterval is how often a running job's lease is renewed.
	// Defaults to a third of Lease.
	HeartbeatInterval time.Duration

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Pool runs workers that claim queued jobs and dispatch them by type.
type Pool struct {
	store    jobs.Store
	handlers map[jobs.Type]Handler
	types    []jobs.Type
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewPool(store jobs.Store, cfg Config, log logrus.FieldLogger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.HeartbeatInterval <= 0 && cfg.Lease > 0 {
		cfg.HeartbeatInterval = cfg.Lease / 3
	}
	return &Pool{
		store:    store,
		handlers: make(map[jobs.Type]Handler),
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register routes jobs of type t to h. Call before Run.
func (p *Pool) Register(t jobs.Type, h Handler) {
	if _, ok := p.handlers[t]; !ok {
		p.types = append(p.types, t)
	}
	p.handlers[t] = h
}

// Run blocks until ctx is done and every in-flight job has returned.
func (p *Pool) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		workerID := i
		group.Go(func() error {
			p.loop(ctx, workerID)
			return nil
		})
	}
	p.log.WithField("workers", p.cfg.Workers).Info("WorkerPool.Run.started")
	err := group.Wait()
	p.log.Info("WorkerPool.Run.stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	log := p.log.WithField("worker", workerID)
	for {
		if ctx.Err() != nil {
			return
		}
		worked, err := p.RunOnce(ctx)
		if err != nil {
			log.WithError(err).Error("WorkerPool.loop.claim")
		}
		if worked {
			continue
		}

		timer := time.NewTimer(p.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job
// was claimed.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.store.ClaimNext(ctx, p.types, p.cfg.Lease)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	p.dispatch(ctx, job)
	return true, nil
}

func (p *Pool) dispatch(ctx context.Context, job *jobs.Job) {
	log := p.log.WithFields(logrus.Fields{
		"jobId":   job.JobID,
		"type":    job.Type,
		"attempt": job.Attempts,
	})

	handler, ok := p.handlers[job.Type]
	if !ok {
		p.fail(ctx, log, job, fmt.Sprintf("no handler for job type %q", job.Type))
		return
	}

	err := p.process(ctx, log, handler, job)
	if err == nil {
		return
	}
	if current, getErr := p.store.Get(ctx, job.JobID, job.UserID); getErr == nil && current.Status.Terminal() {
		// Another worker or a cancellation already finished the job.
		log.WithError(err).WithField("status", current.Status).Warn("WorkerPool.dispatch.finished")
		return
	}
	if ctx.Err() != nil {
		// Shutting down: hand the job back for the next process to pick up.
		if reqErr := p.store.Requeue(context.Background(), job.JobID, p.now(), "interrupted by shutdown"); reqErr != nil {
			log.WithError(reqErr).Error("WorkerPool.dispatch.requeue")
		}
		return
	}

	maxAttempts := job.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = p.cfg.MaxAttempts
	}
	if !retryable(err) || job.Attempts >= maxAttempts {
		log.WithError(err).Error("WorkerPool.dispatch.failed")
		p.fail(ctx, log, job, err.Error())
		return
	}

	delay := p.backoff(job.Attempts)
	log.WithError(err).WithField("delay", delay.String()).Warn("WorkerPool.dispatch.retry")
	if reqErr := p.store.Requeue(ctx, job.JobID, p.now().Add(delay), err.Error()); reqErr != nil {
		log.WithError(reqErr).Error("WorkerPool.dispatch.requeue")
	}
}

// process runs the handler while renewing the job's lease every
// HeartbeatInterval, so a slow job is never reclaimed while it still runs.
func (p *Pool) process(ctx context.Context, log logrus.FieldLogger, handler Handler, job *jobs.Job) error {
	if p.cfg.HeartbeatInterval <= 0 {
		return p.safeProcess(ctx, handler, job)
	}

	beatCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.heartbeat(beatCtx, log, job.JobID)
	}()

	err := p.safeProcess(ctx, handler, job)
	stop()
	wg.Wait()
	return err
}

func (p *Pool) heartbeat(ctx context.Context, log logrus.FieldLogger, jobID string) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := p.store.Heartbeat(ctx, jobID)
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrInvalidTransition):
			return
		case ctx.Err() == nil:
			log.WithError(err).Warn("WorkerPool.heartbeat")
		}
	}
}

func (p *Pool) safeProcess(ctx context.Context, handler Handler, job *jobs.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler.Process(ctx, job)
}

func (p *Pool) fail(ctx context.Context, log logrus.FieldLogger, job *jobs.Job, message string) {
	if _, err := p.store.Transition(ctx, job.JobID, jobs.StatusError, message); err != nil {
		log.WithError(err).Error("WorkerPool.fail.transition")
	}
}

// backoff returns the delay before the next attempt, doubling from
// BaseDelay for every attempt already made.
func (p *Pool) backoff(attempts int) time.Duration {
	schedule := retry.Exponential(p.cfg.BaseDelay, p.cfg.MaxDelay)()
	delay := schedule.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = schedule.NextBackOff()
	}
	return delay
}

// temporary is implemented by errors that know whether running the job
// again later can succeed.
type temporary interface {
	Temporary() bool
}

func retryable(err error) bool {
	if ledger.IsTerminalProvider(err) {
		return false
	}
	var temp temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return true
}
