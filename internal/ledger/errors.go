package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrItemNotActive     = errors.New("linked item is not active")
	ErrUnknownFormat     = errors.New("unknown source format")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobClaimed        = errors.New("job already claimed by a worker")
)

// AdapterError reports one malformed source row.
type AdapterError struct {
	Row    int
	Reason string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// TransientStoreError wraps a persistence failure that may succeed on retry.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error in %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// TerminalProviderError is a provider failure that retrying cannot fix,
// such as revoked consent or an expired credential.
type TerminalProviderError struct {
	Code    string
	Message string
}

func (e *TerminalProviderError) Error() string {
	if e.Message == "" {
		return "provider error " + e.Code
	}
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// RateLimitExceeded is returned when a caller is over its window budget.
type RateLimitExceeded struct {
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit of %d exceeded, resets at %s", e.Limit, e.ResetAt.UTC().Format(time.RFC3339))
}

// DuplicateResolutionAmbiguity is recorded when a candidate matches several
// existing records and none of them is an exact key match.
type DuplicateResolutionAmbiguity struct {
	Matches []uuid.UUID
}

func (e *DuplicateResolutionAmbiguity) Error() string {
	return fmt.Sprintf("candidate matches %d existing transactions", len(e.Matches))
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var transient *TransientStoreError
	return errors.As(err, &transient)
}

// IsTerminalProvider reports whether err is a terminal provider failure.
func IsTerminalProvider(err error) bool {
	var terminal *TerminalProviderError
	return errors.As(err, &terminal)
}
