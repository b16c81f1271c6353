package itemsync

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/adapter"
	"github.com/carson-networks/ingest-server/internal/dedup"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/operator/actions"
	"github.com/carson-networks/ingest-server/internal/provider/plaid"
	"github.com/carson-networks/ingest-server/internal/retry"
	"github.com/carson-networks/ingest-server/internal/storage"
)

const (
	PageSize = 500

	// provider rows match only on external id, so a narrow window is enough
	syncThreshold = 24
)

type WorkerConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Worker pulls one item's changes from the provider and persists them
// through the same deduplication path as file imports.
type Worker struct {
	store    storage.Store
	executor operator.Executor
	jobs     jobs.Store
	provider plaid.Provider
	adapter  adapter.Adapter
	engine   *dedup.Engine
	cfg      WorkerConfig
	log      logrus.FieldLogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWorker(
	store storage.Store,
	executor operator.Executor,
	jobStore jobs.Store,
	provider plaid.Provider,
	cfg WorkerConfig,
	log logrus.FieldLogger,
) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &Worker{
		store:    store,
		executor: executor,
		jobs:     jobStore,
		provider: provider,
		adapter:  adapter.Plaid{},
		engine:   dedup.NewEngine(),
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Worker {
	w.now = now
	w.sleep = sleep
	return w
}

type syncRun struct {
	job      *jobs.Job
	item     *ledger.LinkedItem
	accounts map[string]ledger.LinkedAccount
	refetch  bool

	rows    int
	counts  map[dedup.Action]int
	invalid int
	deleted int64
	errors  []jobs.RowError
}

// Process syncs the job's item. Terminal provider failures put the item and
// the job in the error status and return nil. Transient failures that
// outlast the retry budget are returned so the pool can requeue the job.
func (w *Worker) Process(ctx context.Context, job *jobs.Job) error {
	logData := logging.NewLogData(w.log)
	logData.AddData("jobId", job.JobID)
	logData.AddData("itemId", job.ItemID)
	logData.AddData("initialSync", job.InitialSync)
	endTimer := logData.AddTiming("duration")
	defer endTimer()
	started := w.now()

	if job.Status == jobs.StatusQueued {
		if _, err := w.jobs.Transition(ctx, job.JobID, jobs.StatusProcessing, ""); err != nil {
			return &ledger.TransientStoreError{Op: "transition", Err: err}
		}
	}

	item, err := w.store.Read().Items.Get(ctx, job.UserID, job.ItemID)
	if errors.Is(err, ledger.ErrNotFound) {
		return w.finish(ctx, job, started, jobs.StatusError, "linked item no longer exists", nil)
	}
	if err != nil {
		return &ledger.TransientStoreError{Op: "load item", Err: err}
	}
	if item.Status != ledger.ItemActive {
		return w.finish(ctx, job, started, jobs.StatusError, ledger.ErrItemNotActive.Error(), nil)
	}

	r := &syncRun{
		job:     job,
		item:    item,
		refetch: true,
		counts:  make(map[dedup.Action]int),
	}
	if err := w.loadAccounts(ctx, r); err != nil {
		return err
	}

	update, err := w.fetchUpdate(ctx, r, item.Cursor)
	if err != nil {
		var terminal *ledger.TerminalProviderError
		if errors.As(err, &terminal) {
			logData.AddData("providerError", terminal.Code)
			logData.Log().Warn("SyncWorker.Process.terminal")
			if statusErr := w.executor.Process(ctx, &actions.SetItemStatus{
				UserID:  item.UserID,
				ItemID:  item.ItemID,
				Status:  ledger.ItemError,
				Message: terminal.Error(),
				Now:     w.now(),
			}); statusErr != nil {
				return statusErr
			}
			return w.finish(ctx, job, started, jobs.StatusError, terminal.Error(), r)
		}
		logData.Log().WithError(err).Error("SyncWorker.Process.Error")
		return err
	}

	if err := w.persist(ctx, r, update); err != nil {
		logData.Log().WithError(err).Error("SyncWorker.Process.Error")
		return err
	}

	// The cursor only moves once the whole update is stored.
	if err := w.executor.Process(ctx, &actions.SaveCursor{
		UserID:   item.UserID,
		ItemID:   item.ItemID,
		Cursor:   update.cursor,
		SyncedAt: w.now(),
	}); err != nil {
		return &ledger.TransientStoreError{Op: "save cursor", Err: err}
	}

	logData.AddData("pages", update.pages)
	logData.AddData("rows", r.rows)
	logData.AddData("created", r.counts[dedup.ActionCreate])
	logData.AddData("deleted", r.deleted)
	logData.Log().Info("SyncWorker.Process.Complete")
	return w.finish(ctx, job, started, jobs.StatusDone, "", r)
}

// syncUpdate is every change between the item's stored cursor and the end
// of pagination.
type syncUpdate struct {
	pages   int
	changed []plaid.Transaction
	removed []string
	cursor  string
}

// fetchUpdate pages through the provider from start. A mutation during
// pagination discards the pages read so far and starts over from start.
func (w *Worker) fetchUpdate(ctx context.Context, r *syncRun, start string) (*syncUpdate, error) {
	var update *syncUpdate
	err := retry.Do(ctx, w.policy(r, "paginate", plaid.IsPaginationMutation), func(ctx context.Context, _ int) error {
		var err error
		update, err = w.paginate(ctx, r, start)
		return err
	})
	return update, err
}

func (w *Worker) paginate(ctx context.Context, r *syncRun, start string) (*syncUpdate, error) {
	update := &syncUpdate{cursor: start}
	for {
		page, err := w.fetchPage(ctx, r, update.cursor)
		if err != nil {
			return nil, err
		}
		update.pages++
		update.changed = append(update.changed, page.Added...)
		update.changed = append(update.changed, page.Modified...)
		for _, removed := range page.Removed {
			update.removed = append(update.removed, removed.TransactionID)
		}
		update.cursor = page.NextCursor
		if !page.HasMore {
			return update, nil
		}
	}
}

func (w *Worker) fetchPage(ctx context.Context, r *syncRun, cursor string) (*plaid.SyncResponse, error) {
	var page *plaid.SyncResponse
	err := retry.Do(ctx, w.policy(r, "fetch", plaid.IsRetryable), func(ctx context.Context, _ int) error {
		var err error
		page, err = w.provider.SyncTransactions(ctx, r.item.AccessToken, cursor, PageSize)
		return err
	})
	return page, err
}

// persist applies an update. Removals go first: the provider reports a
// pending transaction that posted as the pending id removed plus the posted
// id added, and the addition must not merge into the row about to go.
func (w *Worker) persist(ctx context.Context, r *syncRun, update *syncUpdate) error {
	gone := make(map[string]bool, len(update.removed))
	for _, id := range update.removed {
		gone[id] = true
	}
	if len(update.removed) > 0 {
		action := &actions.DeleteRemoved{UserID: r.item.UserID, Source: ledger.SourcePlaid, ExternalIDs: update.removed}
		err := retry.Do(ctx, w.policy(r, "delete", nil), func(ctx context.Context, _ int) error {
			return w.executor.Process(ctx, action)
		})
		if err != nil {
			return &ledger.TransientStoreError{Op: "delete removed", Err: err}
		}
		r.deleted += action.Deleted
	}

	changed := make([]plaid.Transaction, 0, len(update.changed))
	for _, tx := range update.changed {
		if !gone[tx.TransactionID] {
			changed = append(changed, tx)
		}
	}

	for batch, from := 1, 0; from < len(changed); batch, from = batch+1, from+PageSize {
		to := from + PageSize
		if to > len(changed) {
			to = len(changed)
		}
		if err := w.persistBatch(ctx, r, batch, changed[from:to]); err != nil {
			return err
		}
		if _, err := w.jobs.MergeStats(ctx, r.job.JobID, r.stats()); err != nil {
			return &ledger.TransientStoreError{Op: "merge stats", Err: err}
		}
	}
	return nil
}

func (w *Worker) persistBatch(ctx context.Context, r *syncRun, batchNo int, changed []plaid.Transaction) error {
	records := make([]actions.BatchRecord, 0, len(changed))
	for _, tx := range changed {
		r.rows++
		row := r.rows

		linked, ok, err := w.account(ctx, r, tx.AccountID)
		if err != nil {
			return err
		}
		if !ok {
			r.invalid++
			r.errors = append(r.errors, jobs.RowError{Row: row, Batch: batchNo, Reason: "unknown provider account " + tx.AccountID})
			continue
		}

		owner := ledger.Owner{UserID: r.item.UserID, AccountID: linked.AccountID}
		rec, err := w.adapter.Normalize(transactionRow(row, tx, linked.Mask), owner)
		if err != nil {
			r.invalid++
			r.errors = append(r.errors, jobs.RowError{Row: row, Batch: batchNo, Reason: err.Error()})
			continue
		}
		records = append(records, actions.BatchRecord{Row: row, Record: rec})
	}
	if len(records) == 0 {
		return nil
	}

	action := &actions.PersistBatch{
		Records:   records,
		Threshold: syncThreshold,
		Engine:    w.engine,
		Now:       w.now(),
	}
	err := retry.Do(ctx, w.policy(r, "persist", nil), func(ctx context.Context, _ int) error {
		return w.executor.Process(ctx, action)
	})
	if err != nil {
		return &ledger.TransientStoreError{Op: "persist batch", Err: err}
	}
	for _, outcome := range action.Outcomes {
		if outcome.Action == dedup.ActionAmbiguous {
			r.invalid++
			r.errors = append(r.errors, jobs.RowError{Row: outcome.Row, Batch: batchNo, Reason: outcome.Err.Error()})
			continue
		}
		r.counts[outcome.Action]++
	}
	return nil
}

// account resolves a provider account id, refreshing the item's accounts
// from the provider once per run when an unknown id shows up.
func (w *Worker) account(ctx context.Context, r *syncRun, providerAccountID string) (ledger.LinkedAccount, bool, error) {
	if linked, ok := r.accounts[providerAccountID]; ok {
		return linked, true, nil
	}
	if !r.refetch {
		return ledger.LinkedAccount{}, false, nil
	}
	r.refetch = false

	var fetched []plaid.Account
	err := retry.Do(ctx, w.policy(r, "accounts", plaid.IsRetryable), func(ctx context.Context, _ int) error {
		var err error
		fetched, err = w.provider.GetAccounts(ctx, r.item.AccessToken)
		return err
	})
	if err != nil {
		return ledger.LinkedAccount{}, false, err
	}

	action := &actions.UpsertItem{Item: *r.item, Accounts: linkedAccounts(r.item.UserID, r.item.ItemID, fetched)}
	if err := w.executor.Process(ctx, action); err != nil {
		return ledger.LinkedAccount{}, false, &ledger.TransientStoreError{Op: "store accounts", Err: err}
	}
	for _, acct := range action.Accounts {
		r.accounts[acct.ProviderAccountID] = acct
	}
	linked, ok := r.accounts[providerAccountID]
	return linked, ok, nil
}

func (w *Worker) loadAccounts(ctx context.Context, r *syncRun) error {
	linked, err := w.store.Read().Items.ListAccounts(ctx, r.item.UserID, r.item.ItemID)
	if err != nil {
		return &ledger.TransientStoreError{Op: "load accounts", Err: err}
	}
	r.accounts = make(map[string]ledger.LinkedAccount, len(linked))
	for _, acct := range linked {
		r.accounts[acct.ProviderAccountID] = acct
	}
	return nil
}

func (w *Worker) policy(r *syncRun, op string, retryable func(error) bool) retry.Policy {
	return retry.Policy{
		MaxAttempts: w.cfg.MaxAttempts,
		BackOff:     retry.Exponential(w.cfg.BaseDelay, w.cfg.MaxDelay),
		Retryable:   retryable,
		Sleep:       w.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			w.log.WithFields(logrus.Fields{
				"jobId":   r.job.JobID,
				"itemId":  r.item.ItemID,
				"op":      op,
				"attempt": attempt,
				"delay":   delay.String(),
			}).WithError(err).Warn("SyncWorker.retry")
		},
	}
}

func (w *Worker) finish(ctx context.Context, job *jobs.Job, started time.Time, status jobs.Status, message string, r *syncRun) error {
	final := jobs.Stats{Progress: jobs.Int(100)}
	if r != nil {
		final = r.stats()
		final.Progress = jobs.Int(100)
	}
	ms := w.now().Sub(started).Milliseconds()
	final.ProcessingTimeMs = &ms
	if _, err := w.jobs.MergeStats(ctx, job.JobID, final); err != nil {
		return &ledger.TransientStoreError{Op: "merge stats", Err: err}
	}
	if _, err := w.jobs.Transition(ctx, job.JobID, status, message); err != nil {
		return &ledger.TransientStoreError{Op: "transition", Err: err}
	}
	return nil
}

func (r *syncRun) stats() jobs.Stats {
	return jobs.Stats{
		Total:   jobs.Int(r.rows),
		Created: jobs.Int(r.counts[dedup.ActionCreate]),
		Updated: jobs.Int(r.counts[dedup.ActionUpdate]),
		Skipped: jobs.Int(r.counts[dedup.ActionSkip]),
		Merged:  jobs.Int(r.counts[dedup.ActionMerge]),
		Invalid: jobs.Int(r.invalid),
		Errors:  append([]jobs.RowError(nil), r.errors...),
	}
}

// transactionRow flattens a provider transaction into the row shape the
// plaid adapter reads.
func transactionRow(index int, tx plaid.Transaction, mask string) adapter.Row {
	return adapter.Row{
		Index: index,
		Fields: map[string]string{
			"transaction_id": tx.TransactionID,
			"account_id":     tx.AccountID,
			"amount":         tx.Amount.String(),
			"date":           tx.Date,
			"name":           tx.Name,
			"merchant_name":  tx.MerchantName,
			"pending":        strconv.FormatBool(tx.Pending),
			"category":       strings.Join(tx.Category, adapter.PlaidCategorySeparator),
			"mask":           mask,
		},
	}
}

