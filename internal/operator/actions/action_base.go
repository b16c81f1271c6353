package actions

import (
	"context"

	"github.com/carson-networks/ingest-server/internal/storage"
)

// IAction is one unit of work performed inside a storage transaction. An
// action may be performed more than once when its caller retries, so any
// result it reports is reset at the start of Perform.
type IAction interface {
	Perform(ctx context.Context, writer *storage.Writer) error
}
