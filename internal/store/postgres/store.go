package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/outbox_repo"
	"ledger/internal/repository/transactions_repo"
	"ledger/internal/store"

	"go.uber.org/zap"
)

// Store runs units of work as READ COMMITTED database transactions.
type Store struct {
	db           *sql.DB
	accounts     accounts_repo.AccountRepository
	transactions transactions_repo.TransactionRepository
	outbox       outbox_repo.OutboxRepository
	logger       *zap.Logger
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:           db,
		accounts:     accounts_repo.NewAccountRepository(),
		transactions: transactions_repo.NewTransactionRepository(),
		outbox:       outbox_repo.NewOutboxRepository(),
		logger:       logger.With(zap.String("component", "postgres_store")),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic inside unit of work, rolling back", zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, &unitOfWork{tx: tx, s: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Error("Failed to roll back transaction", zap.NamedError("cause", err), zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type unitOfWork struct {
	tx *sql.Tx
	s  *Store
}

func (u *unitOfWork) Accounts() store.AccountStore { return accountStore{u} }

func (u *unitOfWork) Transactions() store.TransactionLedger { return ledger{u} }

func (u *unitOfWork) Outbox() store.OutboxStore { return outbox{u} }

type accountStore struct{ u *unitOfWork }

func (a accountStore) Create(ctx context.Context, account *domain.Account) error {
	return a.u.s.accounts.CreateAccountTx(ctx, a.u.tx, account)
}

func (a accountStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	return a.u.s.accounts.GetAccountTx(ctx, a.u.tx, id)
}

func (a accountStore) Save(ctx context.Context, account *domain.Account) error {
	return a.u.s.accounts.UpdateAccountTx(ctx, a.u.tx, account)
}

func (a accountStore) LockForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return a.u.s.accounts.GetAccountForUpdateTx(ctx, a.u.tx, id)
}

func (a accountStore) Delete(ctx context.Context, id int64) error {
	return a.u.s.accounts.DeleteAccountTx(ctx, a.u.tx, id)
}

func (a accountStore) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Account], error) {
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Account]{}, err
	}
	items, total, err := a.u.s.accounts.ListAccountsTx(ctx, a.u.tx, page)
	if err != nil {
		return domain.Page[domain.Account]{}, err
	}
	return domain.NewPage(items, page, total), nil
}

type ledger struct{ u *unitOfWork }

func (l ledger) Append(ctx context.Context, txn *domain.Transaction) error {
	if !txn.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", txn.Type)
	}
	return l.u.s.transactions.CreateTx(ctx, l.u.tx, txn)
}

func (l ledger) ListByAccount(ctx context.Context, accountID int64, page domain.PageRequest) (domain.Page[domain.Transaction], error) {
	items, total, err := l.u.s.transactions.ListByAccountTx(ctx, l.u.tx, accountID, page)
	if err != nil {
		return domain.Page[domain.Transaction]{}, err
	}
	return domain.NewPage(items, page, total), nil
}

type outbox struct{ u *unitOfWork }

func (o outbox) Enqueue(ctx context.Context, msg *domain.OutboxMessage) error {
	return o.u.s.outbox.CreateMessageTx(ctx, o.u.tx, msg)
}

func (o outbox) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	return o.u.s.outbox.GetPendingMessages(ctx, o.u.tx, limit)
}

func (o outbox) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return o.u.s.outbox.MarkSentTx(ctx, o.u.tx, id, sentAt)
}

func (o outbox) RecordFailure(ctx context.Context, id string, reason string, maxAttempts int) error {
	return o.u.s.outbox.RecordFailureTx(ctx, o.u.tx, id, reason, maxAttempts)
}
