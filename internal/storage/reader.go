package storage

import (
	"github.com/stephenafamo/bob"

	"github.com/carson-networks/ingest-server/internal/storage/account"
	"github.com/carson-networks/ingest-server/internal/storage/item"
	"github.com/carson-networks/ingest-server/internal/storage/transaction"
)

type Reader struct {
	Accounts     account.IAccountReader
	Items        item.IItemReader
	Transactions transaction.ITransactionReader
}

func NewReader(exec bob.Executor) *Reader {
	return &Reader{
		Accounts:     account.NewReader(exec),
		Items:        item.NewReader(exec),
		Transactions: transaction.NewReader(exec),
	}
}
