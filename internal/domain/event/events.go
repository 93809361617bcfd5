package event

import "time"

const TransactionRecordedType = "TransactionRecorded"

// TransactionRecordedEvent is published once per ledger record. Amounts are
// decimal strings so consumers never lose precision.
type TransactionRecordedEvent struct {
	EventID       string    `json:"event_id"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}
