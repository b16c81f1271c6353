package operator

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/operator/actions"
	"github.com/carson-networks/ingest-server/internal/storage"
)

var ErrStopped = errors.New("operator delegator stopped")

// Executor runs an action inside one storage transaction.
//
//go:generate mockery --name Executor --output mock_Executor.go
type Executor interface {
	Process(ctx context.Context, action actions.IAction) error
}

// OperatorDelegator manages the queue, starts/stops Operators (workers), and enqueues items.
type OperatorDelegator struct {
	storage    storage.Store
	queue      chan ActionItem
	numWorkers int
	log        logrus.FieldLogger
	wg         sync.WaitGroup

	stopMu   sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

var _ Executor = (*OperatorDelegator)(nil)

func NewOperatorDelegator(s storage.Store, numWorkers int, log logrus.FieldLogger) *OperatorDelegator {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &OperatorDelegator{
		storage:    s,
		queue:      make(chan ActionItem, 1000),
		numWorkers: numWorkers,
		log:        log,
	}
}

func (d *OperatorDelegator) Start() {
	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		op := NewOperator(d.storage, d.queue, d.log)
		go func() {
			defer d.wg.Done()
			op.Run()
		}()
	}
}

// Stop closes the queue and waits for queued actions to finish.
func (d *OperatorDelegator) Stop() {
	d.stopOnce.Do(func() {
		d.stopMu.Lock()
		d.stopped = true
		close(d.queue)
		d.stopMu.Unlock()
		d.wg.Wait()
	})
}

func (d *OperatorDelegator) Process(ctx context.Context, action actions.IAction) error {
	respCh := make(chan ActionItemResponse, 1)
	item := ActionItem{
		ctx:      ctx,
		action:   action,
		response: respCh,
	}

	d.stopMu.RLock()
	if d.stopped {
		d.stopMu.RUnlock()
		return ErrStopped
	}
	select {
	case d.queue <- item:
	case <-ctx.Done():
		d.stopMu.RUnlock()
		return ctx.Err()
	}
	d.stopMu.RUnlock()

	select {
	case resp := <-respCh:
		return resp.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
