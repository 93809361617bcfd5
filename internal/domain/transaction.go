package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit     TransactionType = "DEPOSIT"
	TransactionWithdraw    TransactionType = "WITHDRAW"
	TransactionTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTransferOut TransactionType = "TRANSFER_OUT"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdraw, TransactionTransferIn, TransactionTransferOut:
		return true
	}
	return false
}

// Transaction is an immutable ledger record. ID and Timestamp are assigned
// by the ledger on append.
type Transaction struct {
	ID        int64
	AccountID int64
	Amount    decimal.Decimal
	Type      TransactionType
	Timestamp time.Time
}

// TransferResult carries both post-transfer account states and the paired
// ledger records written in the same unit of work.
type TransferResult struct {
	From   *Account
	To     *Account
	Debit  *Transaction
	Credit *Transaction
}
