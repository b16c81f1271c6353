package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/adapter"
	"github.com/carson-networks/ingest-server/internal/dedup"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/operator/actions"
	"github.com/carson-networks/ingest-server/internal/retry"
)

const deletedWhileProcessing = "deleted by user while processing"

// Processor runs import-transactions jobs: parse, normalize, then persist in
// sequential batches through the deduplication engine.
type Processor struct {
	jobs     jobs.Store
	payloads jobs.PayloadStore
	registry *adapter.Registry
	executor operator.Executor
	engine   *dedup.Engine
	log      logrus.FieldLogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewProcessor(
	store jobs.Store,
	payloads jobs.PayloadStore,
	registry *adapter.Registry,
	executor operator.Executor,
	log logrus.FieldLogger,
) *Processor {
	return &Processor{
		jobs:     store,
		payloads: payloads,
		registry: registry,
		executor: executor,
		engine:   dedup.NewEngine(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepContext,
	}
}

// WithClock replaces the time source and the sleeper used for batch and
// retry delays.
func (p *Processor) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Processor {
	p.now = now
	p.sleep = sleep
	return p
}

// run carries the per-job state of one Process call.
type run struct {
	job     *jobs.Job
	adapter adapter.Adapter
	options jobs.Options
	started time.Time

	total    int
	handled  int
	counts   counters
	errors   []jobs.RowError
	accounts map[string]uuid.UUID
	deleting bool
}

type counters struct {
	created, updated, skipped, merged, invalid int
}

// Process drives job to a terminal status. Failures that belong to the job,
// such as an unknown format or unparseable content, end in the error status
// and a nil return. A non-nil return means the job store itself failed and
// the job may be retried.
func (p *Processor) Process(ctx context.Context, job *jobs.Job) error {
	logData := logging.NewLogData(p.log)
	logData.AddData("jobId", job.JobID)
	logData.AddData("userId", job.UserID)
	logData.AddData("format", job.Format)
	endTimer := logData.AddTiming("duration")

	r := &run{
		job:      job,
		options:  job.Options,
		started:  p.now(),
		accounts: make(map[string]uuid.UUID),
	}

	content, err := p.begin(ctx, job)
	if err != nil {
		endTimer()
		logData.Log().WithError(err).Error("ImportProcessor.Process.Error")
		return err
	}

	r.adapter, err = p.registry.Lookup(job.Format)
	if err != nil {
		endTimer()
		return p.fail(ctx, r, err.Error(), logData)
	}

	endParse := logData.AddTiming("parse")
	rows, err := adapter.ParseCSV(content)
	endParse()
	if err != nil {
		endTimer()
		return p.fail(ctx, r, fmt.Sprintf("parse %s: %v", job.FileName, err), logData)
	}
	r.total = len(rows)
	logData.AddData("rows", r.total)

	if _, err := p.jobs.MergeStats(ctx, job.JobID, jobs.Stats{Total: jobs.Int(r.total), Progress: jobs.Int(0)}); err != nil {
		endTimer()
		return &ledger.TransientStoreError{Op: "merge stats", Err: err}
	}

	endBatches := logData.AddTiming("batches")
	batchSize := r.options.BatchSize
	if batchSize < 1 {
		batchSize = jobs.DefaultOptions.BatchSize
	}
	batchNo := 0
	for start := 0; start < len(rows); start += batchSize {
		batchNo++
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		if err := p.processBatch(ctx, r, batchNo, rows[start:end]); err != nil {
			endBatches()
			endTimer()
			logData.Log().WithError(err).Error("ImportProcessor.Process.Error")
			return err
		}
		if err := p.reportProgress(ctx, r); err != nil {
			endBatches()
			endTimer()
			return err
		}

		if end < len(rows) && r.options.BatchDelay > 0 {
			if err := p.sleep(ctx, r.options.BatchDelay); err != nil {
				endBatches()
				endTimer()
				return err
			}
		}
	}
	endBatches()

	if !r.deleting {
		r.deleting, err = p.jobs.DeletionRequested(ctx, job.JobID)
		if err != nil {
			endTimer()
			return &ledger.TransientStoreError{Op: "deletion check", Err: err}
		}
	}

	final := r.stats()
	final.Progress = jobs.Int(100)
	final.ProcessingTimeMs = p.elapsed(r)
	if _, err := p.jobs.MergeStats(ctx, job.JobID, final); err != nil {
		endTimer()
		return &ledger.TransientStoreError{Op: "merge stats", Err: err}
	}

	status, message := jobs.StatusDone, ""
	if r.deleting {
		status, message = jobs.StatusError, deletedWhileProcessing
	}
	if _, err := p.jobs.Transition(ctx, job.JobID, status, message); err != nil {
		endTimer()
		return &ledger.TransientStoreError{Op: "transition", Err: err}
	}
	p.dropPayload(ctx, job)

	logData.AddData("status", status)
	logData.AddData("created", r.counts.created)
	logData.AddData("skipped", r.counts.skipped)
	logData.AddData("merged", r.counts.merged)
	logData.AddData("updated", r.counts.updated)
	logData.AddData("invalid", r.counts.invalid)
	logData.AddData("errors", len(r.errors))
	endTimer()
	logData.Log().Info("ImportProcessor.Process.Complete")
	return nil
}

// begin moves the job into processing and returns the content to parse. A
// job reclaimed after a worker died is already past queued and continues
// from its current status.
func (p *Processor) begin(ctx context.Context, job *jobs.Job) (string, error) {
	status := job.Status
	if status == jobs.StatusQueued && job.PayloadRef != "" {
		if _, err := p.jobs.Transition(ctx, job.JobID, jobs.StatusUploading, ""); err != nil {
			return "", &ledger.TransientStoreError{Op: "transition", Err: err}
		}
		status = jobs.StatusUploading
	}

	content := job.CSVContent
	if job.PayloadRef != "" {
		if p.payloads == nil {
			return "", fmt.Errorf("job %s has a staged payload but no payload store is configured", job.JobID)
		}
		loaded, err := p.payloads.LoadPayload(ctx, job.PayloadRef)
		if err != nil {
			return "", &ledger.TransientStoreError{Op: "load payload", Err: err}
		}
		content = loaded
	}

	if status != jobs.StatusProcessing {
		if _, err := p.jobs.Transition(ctx, job.JobID, jobs.StatusProcessing, ""); err != nil {
			return "", &ledger.TransientStoreError{Op: "transition", Err: err}
		}
	}
	return content, nil
}

// preparedBatch is a batch's normalized records and the rows that failed
// normalization.
type preparedBatch struct {
	records []actions.BatchRecord
	invalid []jobs.RowError
}

// processBatch resolves the batch's accounts and persists its records under
// one retry budget. A batch that exhausts it has every row recorded as an
// error and the job moves on.
func (p *Processor) processBatch(ctx context.Context, r *run, batchNo int, rows []adapter.Row) error {
	attempts := r.options.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	policy := retry.Policy{
		MaxAttempts: attempts,
		BackOff:     retry.Constant(r.options.RetryDelay),
		Sleep:       p.sleep,
		Retryable: func(error) bool {
			return !p.deletionRequested(ctx, r)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			p.log.WithFields(logrus.Fields{
				"jobId":   r.job.JobID,
				"batch":   batchNo,
				"attempt": attempt,
				"delay":   delay.String(),
			}).WithError(err).Warn("ImportProcessor.batch.retry")
		},
	}

	var batch *preparedBatch
	action := &actions.PersistBatch{
		Threshold: r.options.DeduplicateThreshold,
		Engine:    p.engine,
		Now:       p.now(),
	}
	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		if err := p.resolveAccounts(ctx, r, rows); err != nil {
			return err
		}
		if batch == nil {
			batch = p.prepare(r, batchNo, rows)
			action.Records = batch.records
		}
		if len(batch.records) == 0 {
			return nil
		}
		return p.executor.Process(ctx, action)
	})

	r.handled += len(rows)
	if batch != nil {
		r.counts.invalid += len(batch.invalid)
		r.errors = append(r.errors, batch.invalid...)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		failed := make([]int, 0, len(rows))
		if batch != nil {
			for _, br := range batch.records {
				failed = append(failed, br.Row)
			}
		} else {
			for _, row := range rows {
				failed = append(failed, row.Index)
			}
		}
		p.log.WithFields(logrus.Fields{
			"jobId": r.job.JobID,
			"batch": batchNo,
			"rows":  len(failed),
		}).WithError(err).Error("ImportProcessor.batch.failed")
		reason := fmt.Sprintf("batch %d failed: %v", batchNo, err)
		for _, row := range failed {
			r.errors = append(r.errors, jobs.RowError{Row: row, Batch: batchNo, Reason: reason})
		}
		return nil
	}

	for _, outcome := range action.Outcomes {
		switch outcome.Action {
		case dedup.ActionCreate:
			r.counts.created++
		case dedup.ActionSkip:
			r.counts.skipped++
		case dedup.ActionMerge:
			r.counts.merged++
		case dedup.ActionUpdate:
			r.counts.updated++
		case dedup.ActionAmbiguous:
			r.counts.invalid++
			r.errors = append(r.errors, jobs.RowError{Row: outcome.Row, Batch: batchNo, Reason: outcome.Err.Error()})
		}
	}
	return nil
}

func (p *Processor) prepare(r *run, batchNo int, rows []adapter.Row) *preparedBatch {
	batch := &preparedBatch{records: make([]actions.BatchRecord, 0, len(rows))}
	for _, row := range rows {
		rec, err := p.normalize(r, row)
		if err != nil {
			batch.invalid = append(batch.invalid, jobs.RowError{Row: row.Index, Batch: batchNo, Reason: err.Reason})
			continue
		}
		batch.records = append(batch.records, actions.BatchRecord{Row: row.Index, Record: rec})
	}
	return batch
}

// normalize converts one row, binding it to the job's account or to the
// finance account named by the row. Named accounts are resolved beforehand.
func (p *Processor) normalize(r *run, row adapter.Row) (ledger.TransactionRecord, *ledger.AdapterError) {
	owner := ledger.Owner{UserID: r.job.UserID}
	if r.job.AccountID != nil {
		owner.AccountID = *r.job.AccountID
	} else {
		name := r.adapter.AccountName(row)
		id, ok := r.accounts[name]
		if name == "" || !ok {
			return ledger.TransactionRecord{}, &ledger.AdapterError{Row: row.Index, Reason: "no account given for row"}
		}
		owner.AccountID = id
	}

	rec, err := r.adapter.Normalize(row, owner)
	if err != nil {
		var rowErr *ledger.AdapterError
		if errors.As(err, &rowErr) {
			return ledger.TransactionRecord{}, rowErr
		}
		return ledger.TransactionRecord{}, &ledger.AdapterError{Row: row.Index, Reason: err.Error()}
	}
	return rec, nil
}

// resolveAccounts finds or creates every finance account the rows name that
// this run has not seen yet.
func (p *Processor) resolveAccounts(ctx context.Context, r *run, rows []adapter.Row) error {
	if r.job.AccountID != nil {
		return nil
	}
	for _, row := range rows {
		name := r.adapter.AccountName(row)
		if name == "" {
			continue
		}
		if _, ok := r.accounts[name]; ok {
			continue
		}
		action := &actions.ResolveAccount{UserID: r.job.UserID, Name: name, Now: p.now()}
		if err := p.executor.Process(ctx, action); err != nil {
			return fmt.Errorf("resolve account %q: %w", name, err)
		}
		r.accounts[name] = action.AccountID
	}
	return nil
}

func (p *Processor) deletionRequested(ctx context.Context, r *run) bool {
	if r.deleting {
		return true
	}
	requested, err := p.jobs.DeletionRequested(ctx, r.job.JobID)
	if err != nil {
		p.log.WithField("jobId", r.job.JobID).WithError(err).Warn("ImportProcessor.deletionCheck.Error")
		return false
	}
	r.deleting = requested
	return requested
}

func (p *Processor) reportProgress(ctx context.Context, r *run) error {
	update := r.stats()
	progress := 100
	if r.total > 0 {
		progress = r.handled * 100 / r.total
	}
	update.Progress = jobs.Int(progress)
	if _, err := p.jobs.MergeStats(ctx, r.job.JobID, update); err != nil {
		return &ledger.TransientStoreError{Op: "merge stats", Err: err}
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, r *run, reason string, logData *logging.LogData) error {
	if _, err := p.jobs.MergeStats(ctx, r.job.JobID, jobs.Stats{ProcessingTimeMs: p.elapsed(r)}); err != nil {
		return &ledger.TransientStoreError{Op: "merge stats", Err: err}
	}
	if _, err := p.jobs.Transition(ctx, r.job.JobID, jobs.StatusError, reason); err != nil {
		return &ledger.TransientStoreError{Op: "transition", Err: err}
	}
	p.dropPayload(ctx, r.job)
	logData.AddData("reason", reason)
	logData.Log().Warn("ImportProcessor.Process.Failed")
	return nil
}

func (p *Processor) dropPayload(ctx context.Context, job *jobs.Job) {
	if job.PayloadRef == "" || p.payloads == nil {
		return
	}
	if err := p.payloads.DeletePayload(ctx, job.PayloadRef); err != nil {
		p.log.WithField("jobId", job.JobID).WithError(err).Warn("ImportProcessor.dropPayload.Error")
	}
}

func (p *Processor) elapsed(r *run) *int64 {
	ms := p.now().Sub(r.started).Milliseconds()
	return &ms
}

func (r *run) stats() jobs.Stats {
	return jobs.Stats{
		Total:   jobs.Int(r.total),
		Created: jobs.Int(r.counts.created),
		Updated: jobs.Int(r.counts.updated),
		Skipped: jobs.Int(r.counts.skipped),
		Merged:  jobs.Int(r.counts.merged),
		Invalid: jobs.Int(r.counts.invalid),
		Errors:  append([]jobs.RowError(nil), r.errors...),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
