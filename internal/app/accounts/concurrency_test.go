package accounts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ledger/internal/domain"
	"ledger/internal/store"
	"ledger/internal/store/memory"
)

// retry re-issues op while it reports exhausted contention, as a client
// would. Business errors are returned unchanged.
func retry(op func() error) error {
	for {
		err := op()
		if !errors.Is(err, domain.ErrConcurrencyExhausted) {
			return err
		}
	}
}

func TestConcurrentDepositsLoseNothing(t *testing.T) {
	svc, _ := newTestService(t)
	account := mustCreate(t, svc, "alice", "0")

	const workers = 50
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- retry(func() error {
				_, err := svc.Deposit(ctx, account.ID, dec("10.10"))
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := svc.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, final.Balance.Equal(dec("505")), "balance %s", final.Balance)
	assert.Equal(t, int64(workers), final.Version)
	assert.Len(t, history(t, svc, account.ID), workers)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService(t)
	account := mustCreate(t, svc, "alice", "1000")

	const workers = 20
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var succeeded, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := retry(func() error {
				_, err := svc.Withdraw(ctx, account.ID, dec("100"))
				return err
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(10), rejected.Load())
	assert.True(t, balanceOf(t, svc, account.ID).IsZero())
	assert.Len(t, history(t, svc, account.ID), 10)
}

func TestOppositeTransfersDoNotDeadlock(t *testing.T) {
	svc, _ := newTestService(t)
	a := mustCreate(t, svc, "alice", "1000")
	b := mustCreate(t, svc, "bob", "1000")

	const rounds = 200
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	transfer := func(from, to int64) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(ctx, from, to, dec("1"))
			if err != nil {
				t.Errorf("transfer %d->%d: %v", from, to, err)
				return
			}
		}
	}
	wg.Add(2)
	go transfer(a.ID, b.ID)
	go transfer(b.ID, a.ID)
	wg.Wait()

	require.NoError(t, ctx.Err(), "transfers did not finish in time")
	assert.True(t, balanceOf(t, svc, a.ID).Equal(dec("1000")))
	assert.True(t, balanceOf(t, svc, b.ID).Equal(dec("1000")))
	assert.Len(t, history(t, svc, a.ID), 2*rounds)
	assert.Len(t, history(t, svc, b.ID), 2*rounds)
}

func TestMixedWorkloadConservesMoney(t *testing.T) {
	svc, _ := newTestService(t)
	ids := make([]int64, 4)
	for i := range ids {
		ids[i] = mustCreate(t, svc, "owner", "250").ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var transfers atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				from := ids[(w+i)%len(ids)]
				to := ids[(w+i+1+w%3)%len(ids)]
				if from == to {
					continue
				}
				_, err := svc.Transfer(ctx, from, to, dec("7.5"))
				switch {
				case err == nil:
					transfers.Add(1)
				case errors.Is(err, domain.ErrInsufficientFunds):
				default:
					t.Errorf("transfer: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	total := decimal.Zero
	records := 0
	for _, id := range ids {
		balance := balanceOf(t, svc, id)
		assert.False(t, balance.IsNegative())
		total = total.Add(balance)
		records += len(history(t, svc, id))
	}
	assert.True(t, total.Equal(dec("1000")), "total %s", total)
	assert.Equal(t, int(2*transfers.Load()), records)
}

// readGate holds the first n Get calls until all n have read, so that every
// one of them works from the same version.
type readGate struct {
	remaining atomic.Int32
	release   chan struct{}
}

func newReadGate(n int32) *readGate {
	g := &readGate{release: make(chan struct{})}
	g.remaining.Store(n)
	return g
}

func (g *readGate) wait() {
	switch left := g.remaining.Add(-1); {
	case left == 0:
		close(g.release)
	case left > 0:
		<-g.release
	}
}

type gatedStore struct {
	store.Store
	gate *readGate
}

func (s gatedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, gatedTx{Tx: tx, gate: s.gate})
	})
}

type gatedTx struct {
	store.Tx
	gate *readGate
}

func (t gatedTx) Accounts() store.AccountStore {
	return gatedAccounts{AccountStore: t.Tx.Accounts(), gate: t.gate}
}

type gatedAccounts struct {
	store.AccountStore
	gate *readGate
}

func (a gatedAccounts) Get(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := a.AccountStore.Get(ctx, id)
	a.gate.wait()
	return account, err
}

func TestInducedConflictIsRetried(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	st := memory.New()
	seed := NewAccountService(st, zap.NewNop())
	account := mustCreate(t, seed, "alice", "100")

	svc := NewAccountService(gatedStore{Store: st, gate: newReadGate(2)}, zap.New(core))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Deposit(ctx, account.ID, dec("50"))
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	final, err := seed.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, final.Balance.Equal(dec("200")), "balance %s", final.Balance)
	assert.Equal(t, int64(2), final.Version)
	assert.Len(t, history(t, seed, account.ID), 2)

	conflicts := logs.FilterMessage("Concurrent modification, retrying").All()
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(1), conflicts[0].ContextMap()["attempt"])
	assert.Equal(t, int64(MaxAttempts), conflicts[0].ContextMap()["max_attempts"])
}
