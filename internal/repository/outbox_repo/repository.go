package outbox_repo

import (
	"context"
	"time"

	"ledger/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, reason string, maxAttempts int) error
}
