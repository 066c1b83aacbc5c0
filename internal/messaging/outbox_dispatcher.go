package messaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"arrears/internal/contracts"
	"arrears/internal/infrastructure/metrics"
)

type OutboxStore interface {
	ClaimBatch(ctx context.Context, limit int) ([]contracts.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, nextRetryAt time.Time) error
}

// OutboxDispatcher drains the outbox table written by the lifecycle
// transactions. Claimed rows are re-delivered after 30s if the process dies
// mid-publish, so a consumer may see an event twice but never zero times.
type OutboxDispatcher struct {
	store     OutboxStore
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxDispatcher(
	store OutboxStore,
	publisher Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	interval time.Duration,
	batchSize int,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.dispatch(ctx); err != nil {
			d.logger.Error("outbox dispatch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *OutboxDispatcher) dispatch(ctx context.Context) error {
	messages, err := d.store.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	for _, msg := range messages {
		if err := d.publishOne(ctx, msg); err != nil {
			d.logger.Warn("publish event failed", zap.Int64("messageId", msg.ID), zap.String("eventType", msg.EventType), zap.Error(err))
		}
	}
	return nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, msg contracts.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, msg.EventType, msg.Payload); err != nil {
		nextRetryAt := time.Now().UTC().Add(retryDelay(msg.Attempts + 1))
		if rerr := d.store.Reschedule(ctx, msg.ID, nextRetryAt); rerr != nil {
			d.logger.Error("reschedule failed", zap.Int64("messageId", msg.ID), zap.Error(rerr))
		}
		return err
	}

	if err := d.store.MarkSent(ctx, msg.ID); err != nil {
		return err
	}

	d.metrics.EventsSent.Inc()
	return nil
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 5 {
		attempts = 5
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
