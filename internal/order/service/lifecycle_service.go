package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arrears/internal/contracts"
	"arrears/internal/domain"
	"arrears/internal/dto"
	"arrears/internal/errors"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type OrderRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, order *domain.Order) (uint, error)
	FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id uint) (*domain.Order, error)
	MarkPaid(ctx context.Context, tx *sql.Tx, id uint, paidAt time.Time) error
	MarkCancelled(ctx context.Context, tx *sql.Tx, id uint) error
	MarkOverdue(ctx context.Context, tx *sql.Tx, id uint) (bool, error)
	FindExpiredPendingForUpdate(ctx context.Context, tx *sql.Tx, asOf time.Time, limit int) ([]domain.Order, error)
}

type OrderItemRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, item domain.OrderItem) (uint, error)
}

type OutboxRepository interface {
	Insert(ctx context.Context, tx *sql.Tx, eventID, eventType string, payload []byte) error
}

// LifecycleService owns every order status transition. Each transition runs
// in a single transaction together with its outbox event, so a committed
// status change always has exactly one event recorded for it.
type LifecycleService struct {
	db          TransactionManager
	orderRepo   OrderRepository
	itemRepo    OrderItemRepository
	outboxRepo  OutboxRepository
	logger      *zap.Logger
	paymentTerm time.Duration
	txTimeout   time.Duration
	now         func() time.Time
}

func NewLifecycleService(
	db TransactionManager,
	orderRepo OrderRepository,
	itemRepo OrderItemRepository,
	outboxRepo OutboxRepository,
	logger *zap.Logger,
	paymentTerm time.Duration,
	txTimeout time.Duration,
) *LifecycleService {
	return &LifecycleService{
		db:          db,
		orderRepo:   orderRepo,
		itemRepo:    itemRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
		paymentTerm: paymentTerm,
		txTimeout:   txTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *LifecycleService) PlaceOrder(ctx context.Context, cmd dto.PlaceOrderCommand) (*domain.Order, error) {
	placedAt := s.now()

	order, err := domain.NewOrder(cmd.PlacedBy, cmd.AccountKind, domain.ResolveAmountDue(cmd.Items), placedAt, s.paymentTerm)
	if err != nil {
		return nil, err
	}

	// Bloque 1: Iniciar transacción con timeout
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	// Ensure rollback on any exit path. MySQL ignores rollback if already committed.
	defer tx.Rollback()

	// Bloque 2: Insertar orden e items
	orderID, err := s.orderRepo.Insert(txCtx, tx, order)
	if err != nil {
		s.logger.Error("failed to insert order", zap.Error(err))
		return nil, err
	}
	order.ID = orderID

	for _, item := range cmd.Items {
		item.OrderID = orderID
		if _, err := s.itemRepo.Insert(txCtx, tx, item); err != nil {
			s.logger.Error("failed to insert order item", zap.Uint("orderId", orderID), zap.Error(err))
			return nil, err
		}
	}

	// Bloque 3: Registrar evento y commit
	event := contracts.OrderPlacedEvent{
		EventID:      uuid.New().String(),
		OrderID:      orderID,
		PlacedBy:     order.PlacedBy,
		AccountKind:  string(order.AccountKind),
		AmountDue:    order.AmountDue,
		PlacedAt:     order.PlacedAt,
		PaymentDueAt: order.PaymentDueAt,
	}
	if err := s.insertEvent(txCtx, tx, event.EventID, contracts.EventOrderPlaced, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction", zap.Uint("orderId", orderID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Uint("orderId", orderID),
		zap.String("accountKind", string(order.AccountKind)),
		zap.Int64("amountDue", order.AmountDue),
	)
	return order, nil
}

func (s *LifecycleService) RecordPayment(ctx context.Context, orderID uint, amount int64, paidAt time.Time) (*domain.Order, error) {
	paidAt = paidAt.UTC()
	if paidAt.After(s.now()) {
		return nil, errors.NewValidationError("payment timestamp is in the future", errors.ValidationDetail{
			Field:   "paidAt",
			Message: "must not be later than the current time",
		})
	}

	// Bloque 1: Iniciar transacción con timeout
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	// Ensure rollback on any exit path. MySQL ignores rollback if already committed.
	defer tx.Rollback()

	// Bloque 2: Cargar la orden con lock y validar la transición
	order, err := s.orderRepo.FindByIDForUpdate(txCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.Settle(amount, paidAt); err != nil {
		return nil, err
	}

	if err := s.orderRepo.MarkPaid(txCtx, tx, orderID, paidAt); err != nil {
		s.logger.Error("failed to mark order paid", zap.Uint("orderId", orderID), zap.Error(err))
		return nil, err
	}

	// Bloque 3: Registrar evento y commit
	event := contracts.OrderPaidEvent{
		EventID:  uuid.New().String(),
		OrderID:  orderID,
		PlacedBy: order.PlacedBy,
		Amount:   amount,
		PaidAt:   paidAt,
	}
	if err := s.insertEvent(txCtx, tx, event.EventID, contracts.EventOrderPaid, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction", zap.Uint("orderId", orderID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.Uint("orderId", orderID),
		zap.Int64("amount", amount),
		zap.Time("paidAt", paidAt),
	)
	return order, nil
}

func (s *LifecycleService) CancelOrder(ctx context.Context, orderID uint) (*domain.Order, error) {
	// Bloque 1: Iniciar transacción con timeout
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	// Ensure rollback on any exit path. MySQL ignores rollback if already committed.
	defer tx.Rollback()

	// Bloque 2: Cargar la orden con lock y validar la transición
	order, err := s.orderRepo.FindByIDForUpdate(txCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.Cancel(); err != nil {
		return nil, err
	}

	if err := s.orderRepo.MarkCancelled(txCtx, tx, orderID); err != nil {
		s.logger.Error("failed to mark order cancelled", zap.Uint("orderId", orderID), zap.Error(err))
		return nil, err
	}

	// Bloque 3: Registrar evento y commit
	event := contracts.OrderCancelledEvent{
		EventID:     uuid.New().String(),
		OrderID:     orderID,
		PlacedBy:    order.PlacedBy,
		CancelledAt: s.now(),
	}
	if err := s.insertEvent(txCtx, tx, event.EventID, contracts.EventOrderCancelled, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transaction", zap.Uint("orderId", orderID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("order cancelled", zap.Uint("orderId", orderID))
	return order, nil
}

// SweepOverdue marks every pending company order whose payment window has
// elapsed. It works in batches until a batch comes back short, so a single
// call drains the backlog. Sweeping twice is harmless: swept orders are no
// longer PENDING and drop out of the selection.
func (s *LifecycleService) SweepOverdue(ctx context.Context, batchSize int) (*dto.SweepResult, error) {
	asOf := s.now()
	result := &dto.SweepResult{AsOf: asOf}

	for {
		markedIDs, selected, err := s.sweepBatch(ctx, asOf, batchSize)
		if err != nil {
			return nil, err
		}
		result.MarkedIDs = append(result.MarkedIDs, markedIDs...)

		if selected < batchSize {
			break
		}
	}

	s.logger.Info("overdue sweep completed",
		zap.Int("marked", len(result.MarkedIDs)),
		zap.Time("asOf", asOf),
	)
	return result, nil
}

func (s *LifecycleService) sweepBatch(ctx context.Context, asOf time.Time, limit int) ([]uint, int, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, 0, err
	}
	// Ensure rollback on any exit path. MySQL ignores rollback if already committed.
	defer tx.Rollback()

	// 1. Select expired pending orders with lock
	expired, err := s.orderRepo.FindExpiredPendingForUpdate(txCtx, tx, asOf, limit)
	if err != nil {
		s.logger.Error("failed to query expired orders", zap.Error(err))
		return nil, 0, err
	}

	var markedIDs []uint
	for _, order := range expired {
		// 2. Re-check the transition on the locked row
		if !order.MarkOverdue(asOf) {
			continue
		}

		marked, err := s.orderRepo.MarkOverdue(txCtx, tx, order.ID)
		if err != nil {
			s.logger.Error("failed to mark order overdue", zap.Uint("orderId", order.ID), zap.Error(err))
			return nil, 0, err
		}
		if !marked {
			continue
		}

		// 3. One event per transition
		event := contracts.OrderOverdueEvent{
			EventID:      uuid.New().String(),
			OrderID:      order.ID,
			PlacedBy:     order.PlacedBy,
			AmountDue:    order.AmountDue,
			PaymentDueAt: *order.PaymentDueAt,
			DetectedAt:   asOf,
		}
		if err := s.insertEvent(txCtx, tx, event.EventID, contracts.EventOrderOverdue, event); err != nil {
			return nil, 0, err
		}

		markedIDs = append(markedIDs, order.ID)
		s.logger.Info("order marked overdue",
			zap.Uint("orderId", order.ID),
			zap.Time("paymentDueAt", *order.PaymentDueAt),
		)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit sweep batch", zap.Error(err))
		return nil, 0, err
	}

	return markedIDs, len(expired), nil
}

func (s *LifecycleService) insertEvent(ctx context.Context, tx *sql.Tx, eventID, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal event", zap.String("eventType", eventType), zap.Error(err))
		return err
	}

	if err := s.outboxRepo.Insert(ctx, tx, eventID, eventType, payload); err != nil {
		s.logger.Error("failed to insert outbox event", zap.String("eventType", eventType), zap.Error(err))
		return err
	}

	return nil
}
