package accounts

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/domain"
	"ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *AccountService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error) {
	return s.mutateBalance(ctx, accountID, amount, domain.TransactionDeposit)
}

func (s *AccountService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error) {
	return s.mutateBalance(ctx, accountID, amount, domain.TransactionWithdraw)
}

// mutateBalance runs read, compute, conditional write and ledger append as
// one unit of work. A version conflict discards the whole unit and starts
// over immediately, up to maxAttempts times.
func (s *AccountService) mutateBalance(ctx context.Context, accountID int64, amount decimal.Decimal, txType domain.TransactionType) (*domain.Account, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%s amount %s: %w", txType, amount, domain.ErrInvalidAmount)
	}
	logger := s.logger.With(
		zap.Int64("account_id", accountID),
		zap.String("type", string(txType)),
		zap.String("amount", amount.String()),
	)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var updated *domain.Account
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			account, err := tx.Accounts().Get(ctx, accountID)
			if err != nil {
				return err
			}

			switch txType {
			case domain.TransactionDeposit:
				account.Balance = account.Balance.Add(amount)
			case domain.TransactionWithdraw:
				if account.Balance.LessThan(amount) {
					return fmt.Errorf("account %d balance %s is below %s: %w",
						accountID, account.Balance, amount, domain.ErrInsufficientFunds)
				}
				account.Balance = account.Balance.Sub(amount)
			default:
				return fmt.Errorf("unsupported balance mutation %q", txType)
			}

			if err := tx.Accounts().Save(ctx, account); err != nil {
				return err
			}
			if _, err := s.record(ctx, tx, account, amount, txType); err != nil {
				return err
			}
			updated = account
			return nil
		})

		switch {
		case err == nil:
			logger.Info("Balance updated",
				zap.String("balance", updated.Balance.String()),
				zap.Int64("version", updated.Version),
				zap.Int("attempt", attempt))
			return updated, nil
		case errors.Is(err, domain.ErrConcurrentModification):
			logger.Warn("Concurrent modification, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.maxAttempts))
			continue
		case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrInsufficientFunds):
			logger.Warn("Balance mutation rejected", zap.Error(err))
			return nil, err
		default:
			logger.Error("Balance mutation failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
	}

	logger.Warn("Balance mutation gave up", zap.Int("max_attempts", s.maxAttempts))
	return nil, fmt.Errorf("%s on account %d failed after %d attempts due to contention: %w",
		txType, accountID, s.maxAttempts, domain.ErrConcurrencyExhausted)
}
