package transactions_repo

import (
	"context"

	"ledger/internal/domain"
)

type TransactionRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error
	ListByAccountTx(ctx context.Context, querier domain.Querier, accountID int64, page domain.PageRequest) ([]domain.Transaction, int64, error)
}
