package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"arrears/internal/domain"
	"arrears/internal/dto"
	dtoerrors "arrears/internal/errors"
	"arrears/internal/infrastructure/metrics"
)

const (
	defaultReceivablesLimit = 100
	maxReceivablesLimit     = 500
)

type LifecycleService interface {
	PlaceOrder(ctx context.Context, cmd dto.PlaceOrderCommand) (*domain.Order, error)
	RecordPayment(ctx context.Context, orderID uint, amount int64, paidAt time.Time) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID uint) (*domain.Order, error)
	SweepOverdue(ctx context.Context, batchSize int) (*dto.SweepResult, error)
}

type OrderReader interface {
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	ListByAccount(ctx context.Context, placedBy string) ([]domain.Order, error)
	ListReceivables(ctx context.Context, limit int) ([]domain.Order, error)
}

type OrderItemReader interface {
	ListByOrderID(ctx context.Context, orderID uint) ([]domain.OrderItem, error)
}

type StatusNotifier interface {
	BroadcastOrderStatus(orderID uint, status domain.OrderStatus)
}

type LifecycleUseCase struct {
	svc              LifecycleService
	orders           OrderReader
	items            OrderItemReader
	notifier         StatusNotifier
	metrics          *metrics.Metrics
	logger           *zap.Logger
	sweepBatchSize   int
	maxRetryAttempts int
}

func NewLifecycleUseCase(
	svc LifecycleService,
	orders OrderReader,
	items OrderItemReader,
	notifier StatusNotifier,
	m *metrics.Metrics,
	logger *zap.Logger,
	sweepBatchSize int,
	maxRetryAttempts int,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		svc:              svc,
		orders:           orders,
		items:            items,
		notifier:         notifier,
		metrics:          m,
		logger:           logger,
		sweepBatchSize:   sweepBatchSize,
		maxRetryAttempts: maxRetryAttempts,
	}
}

func (uc *LifecycleUseCase) PlaceOrder(ctx context.Context, cmd dto.PlaceOrderCommand) (*domain.Order, error) {
	// Bloque 1: Logging de inicio
	uc.logger.Info("place order started", zap.String("placedBy", cmd.PlacedBy), zap.String("accountKind", string(cmd.AccountKind)), zap.Int("itemCount", len(cmd.Items)))

	// Bloque 2: Insertar (sin retry, un INSERT no compite por locks)
	order, err := uc.svc.PlaceOrder(ctx, cmd)
	if err != nil {
		return nil, err
	}

	// Bloque 3: Notificaciones post-commit
	uc.metrics.Transitions.WithLabelValues(string(order.Status)).Inc()
	uc.notifier.BroadcastOrderStatus(order.ID, order.Status)
	return order, nil
}

func (uc *LifecycleUseCase) RecordPayment(ctx context.Context, orderID uint, amount int64, paidAt time.Time) (*domain.Order, error) {
	// Bloque 1: Logging de inicio
	uc.logger.Info("record payment started", zap.Uint("orderId", orderID), zap.Int64("amount", amount))

	// Bloque 2: Pre-validaciones (fuera de transacción)
	if _, err := uc.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}

	// Bloque 3: Llamar service con retry
	var order *domain.Order
	err := uc.retryOnDeadlock("record payment", func() error {
		var err error
		order, err = uc.svc.RecordPayment(ctx, orderID, amount, paidAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Bloque 4: Notificaciones post-commit
	uc.metrics.Transitions.WithLabelValues(string(order.Status)).Inc()
	uc.notifier.BroadcastOrderStatus(order.ID, order.Status)
	return order, nil
}

func (uc *LifecycleUseCase) CancelOrder(ctx context.Context, orderID uint) (*domain.Order, error) {
	// Bloque 1: Logging de inicio
	uc.logger.Info("cancel order started", zap.Uint("orderId", orderID))

	// Bloque 2: Pre-validaciones (fuera de transacción)
	if _, err := uc.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}

	// Bloque 3: Llamar service con retry
	var order *domain.Order
	err := uc.retryOnDeadlock("cancel order", func() error {
		var err error
		order, err = uc.svc.CancelOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Bloque 4: Notificaciones post-commit
	uc.metrics.Transitions.WithLabelValues(string(order.Status)).Inc()
	uc.notifier.BroadcastOrderStatus(order.ID, order.Status)
	return order, nil
}

func (uc *LifecycleUseCase) SweepOverdue(ctx context.Context) (*dto.SweepResult, error) {
	// Bloque 1: Logging de inicio
	uc.logger.Info("overdue sweep started", zap.Int("batchSize", uc.sweepBatchSize))

	// Bloque 2: Llamar service con retry
	var result *dto.SweepResult
	err := uc.retryOnDeadlock("overdue sweep", func() error {
		var err error
		result, err = uc.svc.SweepOverdue(ctx, uc.sweepBatchSize)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Bloque 3: Notificaciones post-commit
	if len(result.MarkedIDs) > 0 {
		uc.metrics.SweepMarked.Add(float64(len(result.MarkedIDs)))
		uc.metrics.Transitions.WithLabelValues(string(domain.OrderStatusOverdue)).Add(float64(len(result.MarkedIDs)))
		for _, id := range result.MarkedIDs {
			uc.notifier.BroadcastOrderStatus(id, domain.OrderStatusOverdue)
		}
	}

	uc.logger.Info("overdue sweep finished", zap.Int("marked", len(result.MarkedIDs)), zap.Time("asOf", result.AsOf))
	return result, nil
}

func (uc *LifecycleUseCase) GetOrder(ctx context.Context, orderID uint) (*domain.Order, []domain.OrderItem, error) {
	order, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := uc.items.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

func (uc *LifecycleUseCase) ListOrders(ctx context.Context, placedBy string) ([]domain.Order, error) {
	return uc.orders.ListByAccount(ctx, placedBy)
}

func (uc *LifecycleUseCase) ListReceivables(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultReceivablesLimit
	}
	if limit > maxReceivablesLimit {
		limit = maxReceivablesLimit
	}

	return uc.orders.ListReceivables(ctx, limit)
}

func (uc *LifecycleUseCase) retryOnDeadlock(op string, fn func() error) error {
	maxAttempts := uc.maxRetryAttempts
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), etc.
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isDeadlockError(err) {
			if attempt < maxAttempts {
				idx := attempt - 1
				if idx >= len(backoffs) {
					idx = len(backoffs) - 1
				}
				// Jitter: ±20% of the backoff base
				sleep := time.Duration(float64(backoffs[idx]) * (0.8 + rand.Float64()*0.4))
				time.Sleep(sleep)
				uc.logger.Warn("deadlock detected, retrying", zap.String("operation", op), zap.Int("attempt", attempt), zap.Int("maxAttempts", maxAttempts))
				continue
			}
			// Last attempt with deadlock, fall through to return DeadlockError after loop
			break
		}

		// Non-deadlock error, return immediately
		return err
	}

	return dtoerrors.NewDeadlockError("max retries exceeded")
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
