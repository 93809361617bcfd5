package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ledger/internal/domain"

	"github.com/lib/pq"
)

const checkViolation = "23514"

const accountColumns = `id, holder_name, owner_id, balance, version, created_at, updated_at`

// Whitelisted ORDER BY columns; user input never reaches the query text.
var sortColumns = map[string]string{
	domain.SortByID:         "id",
	domain.SortByHolderName: "holder_name",
	domain.SortByBalance:    "balance",
	domain.SortByCreatedAt:  "created_at",
}

type accountRepository struct{}

func NewAccountRepository() *accountRepository {
	return &accountRepository{}
}

func (r *accountRepository) CreateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		INSERT INTO accounts (holder_name, owner_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		RETURNING id, version, created_at, updated_at
	`
	now := time.Now().UTC()
	err := querier.QueryRowContext(ctx, query, account.HolderName, account.OwnerID, account.Balance, now).Scan(
		&account.ID,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return fmt.Errorf("initial balance %s: %w", account.Balance, domain.ErrInvalidAmount)
		}
		return fmt.Errorf("failed to create account for owner %s: %w", account.OwnerID, err)
	}
	return nil
}

func (r *accountRepository) GetAccountTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getAccount(ctx, querier, query, id)
}

func (r *accountRepository) GetAccountForUpdateTx(ctx context.Context, querier domain.Querier, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return r.getAccount(ctx, querier, query, id)
}

func (r *accountRepository) getAccount(ctx context.Context, querier domain.Querier, query string, id int64) (*domain.Account, error) {
	account, err := scanAccount(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return account, nil
}

// UpdateAccountTx is a compare-and-increment on the version column. Zero
// affected rows means either a concurrent writer won or the row is gone.
func (r *accountRepository) UpdateAccountTx(ctx context.Context, querier domain.Querier, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET holder_name = $1, balance = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at
	`
	err := querier.QueryRowContext(ctx, query,
		account.HolderName, account.Balance, time.Now().UTC(), account.ID, account.Version,
	).Scan(&account.Version, &account.UpdatedAt)
	if err == nil {
		return nil
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
		return fmt.Errorf("account %d balance %s: %w", account.ID, account.Balance, domain.ErrInsufficientFunds)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update account %d: %w", account.ID, err)
	}

	var exists bool
	if err := querier.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, account.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check account %d after version conflict: %w", account.ID, err)
	}
	if !exists {
		return fmt.Errorf("account %d: %w", account.ID, domain.ErrAccountNotFound)
	}
	return fmt.Errorf("account %d expected version %d: %w", account.ID, account.Version, domain.ErrConcurrentModification)
}

func (r *accountRepository) DeleteAccountTx(ctx context.Context, querier domain.Querier, id int64) error {
	res, err := querier.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account %d: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	return nil
}

func (r *accountRepository) ListAccountsTx(ctx context.Context, querier domain.Querier, page domain.PageRequest) ([]domain.Account, int64, error) {
	column, ok := sortColumns[page.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q: %w", page.SortBy, domain.ErrInvalidPage)
	}
	direction := "ASC"
	if page.SortDesc {
		direction = "DESC"
	}

	var total int64
	if err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM accounts ORDER BY %s %s, id %s LIMIT $1 OFFSET $2`,
		accountColumns, column, direction, direction)
	rows, err := querier.QueryContext(ctx, query, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID,
		&account.HolderName,
		&account.OwnerID,
		&account.Balance,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}
