package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

const (
	FormatCapitalOne = "capital-one"
	FormatCopilot    = "copilot"
	FormatPlaid      = "plaid"
)

// Row is one raw source row keyed by column name. Index is the 1-based
// position of the row in its source, excluding the header.
type Row struct {
	Index  int
	Fields map[string]string
}

// Get returns the value of the first matching column, compared case-insensitively.
func (r Row) Get(names ...string) string {
	for _, name := range names {
		if v, ok := r.Fields[name]; ok {
			return strings.TrimSpace(v)
		}
	}
	for key, v := range r.Fields {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(key), name) {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// Adapter converts rows of one institution format into canonical records.
// Implementations must be pure: no I/O and no shared mutable state.
type Adapter interface {
	Normalize(row Row, owner ledger.Owner) (ledger.TransactionRecord, error)
	// AccountName returns the institution's account label for the row, used
	// when the import was not bound to an account up front.
	AccountName(row Row) string
}

// Registry dispatches to adapters by the format name given at submission.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// NewDefaultRegistry returns a registry with every built-in format.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FormatCapitalOne, CapitalOne{})
	r.Register(FormatCopilot, Copilot{})
	r.Register(FormatPlaid, Plaid{})
	return r
}

func (r *Registry) Register(format string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[normalizeFormat(format)] = a
}

func (r *Registry) Lookup(format string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[normalizeFormat(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ledger.ErrUnknownFormat, format)
	}
	return a, nil
}

// Formats lists the registered format names in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

func rowError(row Row, format string, args ...any) error {
	return &ledger.AdapterError{Row: row.Index, Reason: fmt.Sprintf(format, args...)}
}
