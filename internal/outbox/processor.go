package outbox

import (
	"context"
	"fmt"
	"time"

	"ledger/internal/domain"
	"ledger/internal/store"

	"go.uber.org/zap"
)

// DefaultMaxAttempts is how many failed publishes a message survives before
// it is parked as FAILED.
const DefaultMaxAttempts = 10

type Producer interface {
	Produce(ctx context.Context, topic, key string, value []byte) error
}

type Processor struct {
	store        store.Store
	producer     Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	batchSize    int
	maxAttempts  int
	logger       *zap.Logger
	now          func() time.Time
}

func NewProcessor(
	st store.Store,
	producer Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		store:        st,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		batchSize:    batchSize,
		maxAttempts:  DefaultMaxAttempts,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending messages. The batch is
// claimed, published and marked inside a single unit of work, so a crash
// before commit leaves the messages pending for the next poll. Delivery is
// at-least-once.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	sent := 0
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		messages, err := tx.Outbox().FetchPending(fetchCtx, p.batchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending outbox messages: %w", err)
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for _, msg := range messages {
			published, err := p.publish(ctx, tx, msg)
			if err != nil {
				return err
			}
			if !published {
				break
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// publish reports false when the broker rejected the message. The failure is
// recorded and the rest of the batch waits for the next poll.
func (p *Processor) publish(ctx context.Context, tx store.Tx, msg domain.OutboxMessage) (bool, error) {
	logger := p.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.Key),
	)

	if err := p.producer.Produce(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
		logger.Error("Failed to send message to Kafka", zap.Int("attempts", msg.Attempts+1), zap.Error(err))
		if recErr := tx.Outbox().RecordFailure(ctx, msg.ID, err.Error(), p.maxAttempts); recErr != nil {
			return false, fmt.Errorf("failed to record publish failure for %s: %w", msg.ID, recErr)
		}
		if msg.Attempts+1 >= p.maxAttempts {
			logger.Error("Outbox message parked as FAILED", zap.Int("max_attempts", p.maxAttempts))
		}
		return false, nil
	}

	if err := tx.Outbox().MarkSent(ctx, msg.ID, p.now()); err != nil {
		return false, fmt.Errorf("failed to mark outbox message %s as sent: %w", msg.ID, err)
	}
	logger.Debug("Outbox message published")
	return true, nil
}
