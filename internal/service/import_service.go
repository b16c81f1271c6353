package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/adapter"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
)

// ErrInvalidRequest marks submissions rejected before any job is created.
var ErrInvalidRequest = errors.New("invalid request")

// ImportOptions are the caller's processing options. Nil fields take the
// defaults of jobs.DefaultOptions. Delays are in milliseconds.
type ImportOptions struct {
	DeduplicateThreshold *int
	BatchSize            *int
	BatchDelayMs         *int
	MaxRetries           *int
	RetryDelayMs         *int
}

// Resolve applies defaults and validates the result.
func (o ImportOptions) Resolve() (jobs.Options, error) {
	resolved := jobs.DefaultOptions
	if o.DeduplicateThreshold != nil {
		resolved.DeduplicateThreshold = *o.DeduplicateThreshold
	}
	if o.BatchSize != nil {
		resolved.BatchSize = *o.BatchSize
	}
	if o.BatchDelayMs != nil {
		resolved.BatchDelay = time.Duration(*o.BatchDelayMs) * time.Millisecond
	}
	if o.MaxRetries != nil {
		resolved.MaxRetries = *o.MaxRetries
	}
	if o.RetryDelayMs != nil {
		resolved.RetryDelay = time.Duration(*o.RetryDelayMs) * time.Millisecond
	}
	if err := resolved.Validate(); err != nil {
		return jobs.Options{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return resolved, nil
}

// ImportRequest is one file submission.
type ImportRequest struct {
	UserID     string
	FileName   string
	Format     string
	AccountID  *uuid.UUID
	CSVContent string
	Options    ImportOptions
}

// DeleteResult tells whether a job was withdrawn before any worker saw it
// or only marked so its remaining retries are skipped.
type DeleteResult struct {
	Job       *jobs.Job
	Withdrawn bool
}

// ImportService accepts file imports and reports on their jobs.
type ImportService struct {
	jobs        jobs.Store
	payloads    jobs.PayloadStore
	registry    *adapter.Registry
	inlineLimit int
	maxAttempts int
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewImportService(
	jobStore jobs.Store,
	payloads jobs.PayloadStore,
	registry *adapter.Registry,
	inlineLimit int,
	maxAttempts int,
	log logrus.FieldLogger,
) *ImportService {
	return &ImportService{
		jobs:        jobStore,
		payloads:    payloads,
		registry:    registry,
		inlineLimit: inlineLimit,
		maxAttempts: maxAttempts,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit queues an import job. A submission reusing a file name the user
// already imported returns that job instead, with existing set.
func (s *ImportService) Submit(ctx context.Context, req ImportRequest) (job *jobs.Job, existing bool, err error) {
	if req.UserID == "" {
		return nil, false, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.CSVContent) == "" {
		return nil, false, fmt.Errorf("%w: csvContent is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Format) == "" {
		return nil, false, fmt.Errorf("%w: format is required", ErrInvalidRequest)
	}
	options, err := req.Options.Resolve()
	if err != nil {
		return nil, false, err
	}

	log := s.log.WithFields(logrus.Fields{
		"userId":   req.UserID,
		"fileName": req.FileName,
		"format":   req.Format,
	})

	if req.FileName != "" {
		found, err := s.jobs.FindByFileName(ctx, req.UserID, req.FileName)
		if err != nil {
			return nil, false, err
		}
		if found != nil {
			log.WithField("jobId", found.JobID).Info("ImportService.Submit.existing")
			return found, true, nil
		}
	}

	job = &jobs.Job{
		JobID:       jobs.NewJobID(),
		UserID:      req.UserID,
		Type:        jobs.TypeImportTransactions,
		Status:      jobs.StatusQueued,
		FileName:    req.FileName,
		AccountID:   req.AccountID,
		Format:      req.Format,
		Options:     options,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   s.now(),
	}
	if job.FileName == "" {
		job.FileName = "upload-" + job.JobID + ".csv"
	}

	if s.inlineLimit > 0 && len(req.CSVContent) > s.inlineLimit {
		ref, err := s.payloads.StagePayload(ctx, req.CSVContent)
		if err != nil {
			return nil, false, fmt.Errorf("stage payload: %w", err)
		}
		job.PayloadRef = ref
	} else {
		job.CSVContent = req.CSVContent
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		if job.PayloadRef != "" {
			if delErr := s.payloads.DeletePayload(ctx, job.PayloadRef); delErr != nil {
				log.WithError(delErr).Warn("ImportService.Submit.dropPayload")
			}
		}
		return nil, false, err
	}

	log.WithFields(logrus.Fields{
		"jobId":  job.JobID,
		"staged": job.PayloadRef != "",
	}).Info("ImportService.Submit.queued")
	return job, false, nil
}

// Formats lists the source formats imports may name.
func (s *ImportService) Formats() []string {
	return s.registry.Formats()
}

func (s *ImportService) Get(ctx context.Context, userID, jobID string) (*jobs.Job, error) {
	return s.jobs.Get(ctx, jobID, userID)
}

// List returns the user's jobs, newest first. A limit of 0 returns all.
func (s *ImportService) List(ctx context.Context, userID string, limit int) ([]*jobs.Job, error) {
	return s.jobs.ListByUser(ctx, userID, limit)
}

// Delete withdraws a job no worker has claimed. A claimed job keeps
// running, but is marked so its remaining retries are skipped and it ends
// in error.
func (s *ImportService) Delete(ctx context.Context, userID, jobID string) (*DeleteResult, error) {
	err := s.jobs.Withdraw(ctx, jobID, userID)
	withdrawn := err == nil
	switch {
	case errors.Is(err, ledger.ErrJobClaimed):
		if err := s.jobs.RequestDeletion(ctx, jobID, userID); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	job, err := s.jobs.Get(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if withdrawn && job.PayloadRef != "" {
		if err := s.payloads.DeletePayload(ctx, job.PayloadRef); err != nil {
			s.log.WithField("jobId", jobID).WithError(err).Warn("ImportService.Delete.dropPayload")
		}
	}
	return &DeleteResult{Job: job, Withdrawn: withdrawn}, nil
}
