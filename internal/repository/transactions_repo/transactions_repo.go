package transactions_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"

	"github.com/lib/pq"
)

type transactionRepository struct{}

func NewTransactionRepository() *transactionRepository {
	return &transactionRepository{}
}

// CreateTx appends a ledger row. The table has no UPDATE or DELETE path.
func (r *transactionRepository) CreateTx(ctx context.Context, querier domain.Querier, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (account_id, amount, type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := querier.QueryRowContext(ctx, query, txn.AccountID, txn.Amount, txn.Type, time.Now().UTC()).
		Scan(&txn.ID, &txn.Timestamp)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return fmt.Errorf("transaction amount %s: %w", txn.Amount, domain.ErrInvalidAmount)
		}
		return fmt.Errorf("failed to append %s transaction for account %d: %w", txn.Type, txn.AccountID, err)
	}
	return nil
}

func (r *transactionRepository) ListByAccountTx(ctx context.Context, querier domain.Querier, accountID int64, page domain.PageRequest) ([]domain.Transaction, int64, error) {
	var total int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions for account %d: %w", accountID, err)
	}

	query := `
		SELECT id, account_id, amount, type, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := querier.QueryContext(ctx, query, accountID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		if err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Amount, &txn.Type, &txn.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, total, nil
}
