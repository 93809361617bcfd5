package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"ledger/internal/domain"
	"ledger/internal/domain/event"
	"ledger/internal/store"
	"ledger/internal/util"

	"github.com/shopspring/decimal"
)

// record appends one ledger row for account and, when events are enabled,
// the matching outbox message. Both land in the caller's unit of work.
func (s *AccountService) record(ctx context.Context, tx store.Tx, account *domain.Account, amount decimal.Decimal, txType domain.TransactionType) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		AccountID: account.ID,
		Amount:    amount,
		Type:      txType,
	}
	if err := tx.Transactions().Append(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to append %s for account %d: %w", txType, account.ID, err)
	}
	if s.eventsTopic == "" {
		return txn, nil
	}

	msg, err := newTransactionRecordedMessage(s.eventsTopic, txn, account)
	if err != nil {
		return nil, err
	}
	if err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue event for transaction %d: %w", txn.ID, err)
	}
	return txn, nil
}

func newTransactionRecordedMessage(topic string, txn *domain.Transaction, account *domain.Account) (*domain.OutboxMessage, error) {
	eventID := util.NewID()
	payload, err := json.Marshal(event.TransactionRecordedEvent{
		EventID:       eventID,
		TransactionID: txn.ID,
		AccountID:     account.ID,
		Type:          string(txn.Type),
		Amount:        txn.Amount.String(),
		BalanceAfter:  account.Balance.String(),
		Version:       account.Version,
		Timestamp:     txn.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction event: %w", err)
	}

	key := strconv.FormatInt(account.ID, 10)
	return &domain.OutboxMessage{
		ID:            eventID,
		AggregateID:   key,
		AggregateType: "account",
		MessageType:   event.TransactionRecordedType,
		Topic:         topic,
		Key:           key,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     txn.Timestamp,
	}, nil
}
