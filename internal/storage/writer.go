package storage

import (
	"context"

	"github.com/stephenafamo/bob"

	"github.com/carson-networks/ingest-server/internal/storage/account"
	"github.com/carson-networks/ingest-server/internal/storage/item"
	"github.com/carson-networks/ingest-server/internal/storage/transaction"
)

// Transactor ends a unit of work. bob.Tx satisfies it.
type Transactor interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Writer struct {
	tx           Transactor
	Accounts     account.IAccountWriter
	Items        item.IItemWriter
	Transactions transaction.ITransactionWriter
}

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{
		tx:           tx,
		Accounts:     account.NewWriter(tx),
		Items:        item.NewWriter(tx),
		Transactions: transaction.NewWriter(tx),
	}
}

// NewWriterWith assembles a writer from arbitrary table writers sharing tx.
func NewWriterWith(
	tx Transactor,
	accounts account.IAccountWriter,
	items item.IItemWriter,
	transactions transaction.ITransactionWriter,
) *Writer {
	return &Writer{
		tx:           tx,
		Accounts:     accounts,
		Items:        items,
		Transactions: transactions,
	}
}

func (w *Writer) Commit(ctx context.Context) error {
	return w.tx.Commit(ctx)
}

func (w *Writer) Rollback(ctx context.Context) error {
	return w.tx.Rollback(ctx)
}
