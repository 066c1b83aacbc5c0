package order

import (
	"database/sql"

	"arrears/internal/config"
	"arrears/internal/infrastructure/metrics"
	"arrears/internal/order/controller"
	orderrepo "arrears/internal/order/repository"
	"arrears/internal/order/service"
	"arrears/internal/order/usecase"

	"go.uber.org/zap"
)

// NewModule assembles the order lifecycle stack. The outbox repository is
// shared with the dispatcher, so the caller owns it.
func NewModule(
	db *sql.DB,
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	notifier usecase.StatusNotifier,
	outboxRepo service.OutboxRepository,
) (*controller.OrderController, *usecase.LifecycleUseCase) {
	orderRepo := orderrepo.NewMySQLOrderRepository(db)
	orderItemRepo := orderrepo.NewMySQLOrderItemRepository(db)

	lifecycleSvc := service.NewLifecycleService(
		db,
		orderRepo,
		orderItemRepo,
		outboxRepo,
		logger,
		cfg.Order.PaymentTerm,
		cfg.Order.TxTimeout,
	)

	lifecycleUC := usecase.NewLifecycleUseCase(
		lifecycleSvc,
		orderRepo,
		orderItemRepo,
		notifier,
		m,
		logger,
		cfg.Sweep.BatchSize,
		cfg.Order.MaxRetryAttempts,
	)

	return controller.NewOrderController(lifecycleUC, logger), lifecycleUC
}
