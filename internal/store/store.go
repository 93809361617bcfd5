package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ledger/internal/domain"
)

// AccountStore persists accounts. Implementations are bound to a single
// unit of work obtained from Store.WithinTx.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	// Get is a plain read-committed read that takes no lock.
	Get(ctx context.Context, id int64) (*domain.Account, error)
	// Save writes the account only if its stored version still equals
	// account.Version, incrementing the version by one. A mismatch returns
	// domain.ErrConcurrentModification and leaves the row untouched.
	Save(ctx context.Context, account *domain.Account) error
	// LockForUpdate blocks until an exclusive row lock is held. The lock is
	// released when the unit of work commits or rolls back.
	LockForUpdate(ctx context.Context, id int64) (*domain.Account, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Account], error)
}

// TransactionLedger is append-only.
type TransactionLedger interface {
	Append(ctx context.Context, txn *domain.Transaction) error
	// ListByAccount returns records newest first.
	ListByAccount(ctx context.Context, accountID int64, page domain.PageRequest) (domain.Page[domain.Transaction], error)
}

type OutboxStore interface {
	Enqueue(ctx context.Context, msg *domain.OutboxMessage) error
	// FetchPending claims up to limit pending messages for the lifetime of
	// the unit of work; concurrent callers skip claimed rows.
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	// RecordFailure bumps the attempt counter and moves the message to
	// FAILED once maxAttempts is reached.
	RecordFailure(ctx context.Context, id string, reason string, maxAttempts int) error
}

// Tx groups the stores that share one unit of work.
type Tx interface {
	Accounts() AccountStore
	Transactions() TransactionLedger
	Outbox() OutboxStore
}

type Store interface {
	// WithinTx runs fn in a unit of work. It commits when fn returns nil and
	// rolls back on error, panic or context cancellation.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// LockInOrder locks every distinct id in ascending order and returns the
// locked accounts keyed by id. All multi-account units of work go through
// here so that two of them can never wait on each other in a cycle.
func LockInOrder(ctx context.Context, accounts AccountStore, ids ...int64) (map[int64]*domain.Account, error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	locked := make(map[int64]*domain.Account, len(ordered))
	for _, id := range ordered {
		account, err := accounts.LockForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		locked[id] = account
	}
	return locked, nil
}
