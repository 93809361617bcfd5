package accounts

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/domain"
	"ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAccount opens an account. A non-zero initial balance is not
// recorded in the ledger; history starts with the first mutation.
func (s *AccountService) CreateAccount(ctx context.Context, ownerID, holderName string, initialBalance decimal.Decimal) (*domain.Account, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrInvalidOwner
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("initial balance %s: %w", initialBalance, domain.ErrInvalidAmount)
	}

	account := &domain.Account{
		HolderName: holderName,
		OwnerID:    ownerID,
		Balance:    initialBalance,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		s.logger.Error("Failed to create account", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.String("owner_id", ownerID),
		zap.String("balance", account.Balance.String()))
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var account *domain.Account
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		account, err = tx.Accounts().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Account], error) {
	if err := page.Validate(); err != nil {
		return domain.Page[domain.Account]{}, err
	}
	var result domain.Page[domain.Account]
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.Accounts().List(ctx, page)
		return err
	})
	return result, err
}

// DeleteAccount removes the account row. Its ledger records are kept.
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Account deleted", zap.Int64("account_id", id))
	return nil
}

func (s *AccountService) ListTransactions(ctx context.Context, accountID int64, page domain.PageRequest) (domain.Page[domain.Transaction], error) {
	if page.Number < 0 || page.Size < 1 || page.Size > domain.MaxPageSize {
		return domain.Page[domain.Transaction]{}, fmt.Errorf("page %d size %d: %w", page.Number, page.Size, domain.ErrInvalidPage)
	}
	var result domain.Page[domain.Transaction]
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Accounts().Get(ctx, accountID); err != nil {
			return err
		}
		var err error
		result, err = tx.Transactions().ListByAccount(ctx, accountID, page)
		return err
	})
	return result, err
}
