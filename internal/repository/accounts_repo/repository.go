package accounts_repo

import (
	"context"

	"ledger/internal/domain"
)

type AccountRepository interface {
	CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error)
	GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error)
	UpdateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error
	DeleteAccountTx(ctx context.Context, querier domain.Querier, id int64) error
	ListAccountsTx(ctx context.Context, querier domain.Querier, page domain.PageRequest) ([]domain.Account, int64, error)
}
