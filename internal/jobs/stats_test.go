package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// -- Stats.Merge tests --

func TestMerge_FillsAbsentFields(t *testing.T) {
	merged := Stats{}.Merge(Stats{Progress: Int(10), Total: Int(30)})

	assert.Equal(t, 10, *merged.Progress)
	assert.Equal(t, 30, *merged.Total)
	assert.Nil(t, merged.Created)
}

func TestMerge_NeverRegresses(t *testing.T) {
	current := Stats{Progress: Int(60), Created: Int(12), Invalid: Int(1)}
	stale := Stats{Progress: Int(40), Created: Int(8), Skipped: Int(3)}

	merged := current.Merge(stale)

	assert.Equal(t, 60, *merged.Progress)
	assert.Equal(t, 12, *merged.Created)
	assert.Equal(t, 1, *merged.Invalid)
	assert.Equal(t, 3, *merged.Skipped)
}

func TestMerge_AppendsErrorsOnce(t *testing.T) {
	rowTwo := RowError{Row: 2, Batch: 1, Reason: "row 2: date: unrecognized date"}
	current := Stats{Errors: []RowError{rowTwo}}

	merged := current.Merge(Stats{Errors: []RowError{rowTwo, {Row: 5, Batch: 2, Reason: "batch failed"}}})

	assert.Len(t, merged.Errors, 2)
	assert.Len(t, current.Errors, 1, "receiver is not mutated")
}

func TestMerge_DoesNotAlias(t *testing.T) {
	update := Stats{Created: Int(3)}
	merged := Stats{}.Merge(update)

	*update.Created = 99
	assert.Equal(t, 3, *merged.Created)
}

func TestMerge_ProcessingTime(t *testing.T) {
	ms := int64(1500)
	older := int64(900)

	merged := Stats{ProcessingTimeMs: &ms}.Merge(Stats{ProcessingTimeMs: &older})

	assert.Equal(t, int64(1500), *merged.ProcessingTimeMs)
}

// -- status transition tests --

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusQueued, StatusUploading))
	assert.True(t, CanTransition(StatusQueued, StatusProcessing))
	assert.True(t, CanTransition(StatusUploading, StatusProcessing))
	assert.True(t, CanTransition(StatusProcessing, StatusDone))
	assert.True(t, CanTransition(StatusUploading, StatusError))

	assert.False(t, CanTransition(StatusQueued, StatusDone))
	assert.False(t, CanTransition(StatusDone, StatusError))
	assert.False(t, CanTransition(StatusError, StatusQueued))
	assert.False(t, CanTransition(StatusProcessing, StatusUploading))
}

func TestCheckTransition(t *testing.T) {
	err := CheckTransition(StatusDone, StatusProcessing)
	assert.True(t, errors.Is(err, ledger.ErrInvalidTransition))
	assert.NoError(t, CheckTransition(StatusQueued, StatusProcessing))
}

// -- Options tests --

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions.Validate())

	bad := DefaultOptions
	bad.BatchSize = 0
	assert.Error(t, bad.Validate())

	bad = DefaultOptions
	bad.DeduplicateThreshold = 101
	assert.Error(t, bad.Validate())

	bad = DefaultOptions
	bad.BatchDelay = 2 * time.Second
	assert.Error(t, bad.Validate())

	zero := DefaultOptions
	zero.DeduplicateThreshold = 0
	zero.MaxRetries = 0
	assert.NoError(t, zero.Validate())
}

func TestSourcesOf(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusQueued, StatusUploading, StatusProcessing}, SourcesOf(StatusError))
	assert.ElementsMatch(t, []Status{StatusProcessing}, SourcesOf(StatusDone))
	assert.Empty(t, SourcesOf(StatusQueued))
}
