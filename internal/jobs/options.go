package jobs

import (
	"fmt"
	"time"
)

// Options tune how an import job is processed.
type Options struct {
	DeduplicateThreshold int           `json:"deduplicateThreshold"`
	BatchSize            int           `json:"batchSize"`
	BatchDelay           time.Duration `json:"batchDelay"`
	MaxRetries           int           `json:"maxRetries"`
	RetryDelay           time.Duration `json:"retryDelay"`
}

// DefaultOptions are applied to fields a submission leaves unset.
var DefaultOptions = Options{
	DeduplicateThreshold: 60,
	BatchSize:            20,
	BatchDelay:           200 * time.Millisecond,
	MaxRetries:           3,
	RetryDelay:           500 * time.Millisecond,
}

const (
	MaxBatchSize  = 100
	MaxBatchDelay = time.Second
	MaxRetries    = 10
	MaxRetryDelay = 10 * time.Second
	MaxThreshold  = 100
)

// Validate checks the options are within their supported ranges.
func (o Options) Validate() error {
	switch {
	case o.DeduplicateThreshold < 0 || o.DeduplicateThreshold > MaxThreshold:
		return fmt.Errorf("deduplicateThreshold must be between 0 and %d", MaxThreshold)
	case o.BatchSize < 1 || o.BatchSize > MaxBatchSize:
		return fmt.Errorf("batchSize must be between 1 and %d", MaxBatchSize)
	case o.BatchDelay < 0 || o.BatchDelay > MaxBatchDelay:
		return fmt.Errorf("batchDelay must be between 0 and %s", MaxBatchDelay)
	case o.MaxRetries < 0 || o.MaxRetries > MaxRetries:
		return fmt.Errorf("maxRetries must be between 0 and %d", MaxRetries)
	case o.RetryDelay < 0 || o.RetryDelay > MaxRetryDelay:
		return fmt.Errorf("retryDelay must be between 0 and %s", MaxRetryDelay)
	}
	return nil
}
