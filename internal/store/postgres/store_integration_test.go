//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/infrastructure/database"
	"ledger/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL is not set")
	}
	require.NoError(t, database.RunMigrations("file://../../../migrations", url, zap.NewNop()))

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	_, err = db.Exec(`TRUNCATE accounts, transactions, outbox_messages RESTART IDENTITY`)
	require.NoError(t, err)

	st := NewStore(db, zap.NewNop())
	t.Cleanup(func() { st.Close() })
	return st
}

func create(t *testing.T, st *Store, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{HolderName: "holder", OwnerID: "owner", Balance: decimal.RequireFromString(balance)}
	require.NoError(t, st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Create(ctx, account)
	}))
	return account
}

func TestSaveIsCompareAndIncrement(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	account := create(t, st, "100.00")
	assert.Equal(t, int64(0), account.Version)

	var stale *domain.Account
	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		stale, err = tx.Accounts().Get(ctx, account.ID)
		return err
	}))

	account.Balance = decimal.RequireFromString("150.25")
	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Save(ctx, account)
	}))
	assert.Equal(t, int64(1), account.Version)

	stale.Balance = decimal.Zero
	err := st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Save(ctx, stale)
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	err = st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Save(ctx, &domain.Account{ID: 9999, Balance: decimal.Zero})
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestBalanceCheckConstraint(t *testing.T) {
	st := openTestStore(t)
	account := create(t, st, "1")

	account.Balance = decimal.RequireFromString("-1")
	err := st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Save(ctx, account)
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestLockForUpdateBlocksSecondLocker(t *testing.T) {
	st := openTestStore(t)
	account := create(t, st, "10")

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.Accounts().LockForUpdate(ctx, account.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Accounts().LockForUpdate(ctx, account.ID)
		return err
	})
	assert.Error(t, err)
}

func TestLedgerAndOutboxRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	account := create(t, st, "0")

	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, amount := range []string{"1.5", "2.25"} {
			if err := tx.Transactions().Append(ctx, &domain.Transaction{
				AccountID: account.ID, Amount: decimal.RequireFromString(amount), Type: domain.TransactionDeposit,
			}); err != nil {
				return err
			}
		}
		return tx.Outbox().Enqueue(ctx, &domain.OutboxMessage{
			ID: "4f9a3c1e-8f7b-4c61-a7c2-0d3b2f6e9a10", AggregateID: "1", AggregateType: "account",
			MessageType: "TransactionRecorded", Topic: "ledger_transactions", Key: "1", Payload: []byte(`{"a":1}`),
		})
	}))

	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		page, err := tx.Transactions().ListByAccount(ctx, account.ID, domain.PageRequest{Size: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.True(t, page.Items[0].Amount.Equal(decimal.RequireFromString("2.25")))
		assert.Equal(t, int64(2), page.TotalElements)

		pending, err := tx.Outbox().FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.JSONEq(t, `{"a":1}`, string(pending[0].Payload))
		return tx.Outbox().MarkSent(ctx, pending[0].ID, time.Now())
	}))

	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		pending, err := tx.Outbox().FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
		return nil
	}))
}
