package accounts

import (
	"context"

	"ledger/internal/domain"
	"ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxAttempts bounds the optimistic retry loop of Deposit and Withdraw.
const MaxAttempts = 3

// Service is the inbound API of the ledger. Identity is always passed in
// explicitly; nothing here reads it from the context.
type Service interface {
	CreateAccount(ctx context.Context, ownerID, holderName string, initialBalance decimal.Decimal) (*domain.Account, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Account], error)
	DeleteAccount(ctx context.Context, id int64) error
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error)
	Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.TransferResult, error)
	ListTransactions(ctx context.Context, accountID int64, page domain.PageRequest) (domain.Page[domain.Transaction], error)
}

type AccountService struct {
	store       store.Store
	logger      *zap.Logger
	maxAttempts int
	eventsTopic string
}

type Option func(*AccountService)

func WithMaxAttempts(n int) Option {
	return func(s *AccountService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithEventsTopic enables the outbox: every ledger record also stages a
// TransactionRecorded message for the given topic.
func WithEventsTopic(topic string) Option {
	return func(s *AccountService) {
		s.eventsTopic = topic
	}
}

func NewAccountService(st store.Store, logger *zap.Logger, opts ...Option) *AccountService {
	s := &AccountService{
		store:       st,
		logger:      logger,
		maxAttempts: MaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Service = (*AccountService)(nil)
