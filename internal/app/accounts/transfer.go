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

// Transfer moves amount between two accounts under exclusive row locks
// taken in ascending id order. Either both balances and both ledger records
// commit or nothing does.
func (s *AccountService) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.TransferResult, error) {
	if fromID == toID {
		return nil, fmt.Errorf("transfer from %d to %d: %w", fromID, toID, domain.ErrInvalidTransfer)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("transfer amount %s: %w", amount, domain.ErrInvalidAmount)
	}
	logger := s.logger.With(
		zap.Int64("from_account_id", fromID),
		zap.Int64("to_account_id", toID),
		zap.String("amount", amount.String()),
	)

	var result *domain.TransferResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		locked, err := store.LockInOrder(ctx, tx.Accounts(), fromID, toID)
		if err != nil {
			return err
		}
		from, to := locked[fromID], locked[toID]

		if from.Balance.LessThan(amount) {
			return fmt.Errorf("account %d balance %s is below %s: %w",
				fromID, from.Balance, amount, domain.ErrInsufficientFunds)
		}
		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)

		if err := tx.Accounts().Save(ctx, from); err != nil {
			return err
		}
		if err := tx.Accounts().Save(ctx, to); err != nil {
			return err
		}

		debit, err := s.record(ctx, tx, from, amount, domain.TransactionTransferOut)
		if err != nil {
			return err
		}
		credit, err := s.record(ctx, tx, to, amount, domain.TransactionTransferIn)
		if err != nil {
			return err
		}
		result = &domain.TransferResult{From: from, To: to, Debit: debit, Credit: credit}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) || errors.Is(err, domain.ErrInsufficientFunds) {
			logger.Warn("Transfer rejected", zap.Error(err))
		} else {
			logger.Error("Transfer failed", zap.Error(err))
		}
		return nil, err
	}

	logger.Info("Transfer completed",
		zap.String("from_balance", result.From.Balance.String()),
		zap.String("to_balance", result.To.Balance.String()))
	return result, nil
}
