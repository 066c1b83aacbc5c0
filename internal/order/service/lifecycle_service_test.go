package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arrears/internal/contracts"
	"arrears/internal/domain"
	"arrears/internal/dto"
	"arrears/internal/errors"
	"arrears/internal/order/repository"
	"arrears/internal/testutil"
)

const (
	testPaymentTerm = 30 * 24 * time.Hour
	testTxTimeout   = 5 * time.Second
)

// Unit Tests

func TestLifecycleService_RecordPayment_FutureTimestampRejected(t *testing.T) {
	// The check runs before any transaction is opened
	svc := NewLifecycleService(nil, nil, nil, nil, zap.NewNop(), testPaymentTerm, testTxTimeout)

	order, err := svc.RecordPayment(context.Background(), 1, 100, time.Now().UTC().Add(time.Hour))

	assert.Nil(t, order)
	ve, ok := errors.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "paidAt", ve.Details[0].Field)
}

func TestLifecycleService_PlaceOrder_InvalidAmountRejected(t *testing.T) {
	svc := NewLifecycleService(nil, nil, nil, nil, zap.NewNop(), testPaymentTerm, testTxTimeout)

	order, err := svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: domain.AccountKindCustomer,
		Items:       nil,
	})

	assert.Nil(t, order)
	_, ok := errors.IsInvalidAmountError(err)
	assert.True(t, ok)
}

func TestLifecycleService_PlaceOrder_UnknownAccountKindRejected(t *testing.T) {
	svc := NewLifecycleService(nil, nil, nil, nil, zap.NewNop(), testPaymentTerm, testTxTimeout)

	order, err := svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: "VENDOR",
		Items:       []domain.OrderItem{{Description: "thing", Quantity: 1, UnitPrice: 100}},
	})

	assert.Nil(t, order)
	_, ok := errors.IsUnknownAccountKindError(err)
	assert.True(t, ok)
}

// Integration Tests

type serviceFixture struct {
	db  *sql.DB
	svc *LifecycleService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	svc := NewLifecycleService(
		db,
		repository.NewMySQLOrderRepository(db),
		repository.NewMySQLOrderItemRepository(db),
		repository.NewMySQLOutboxRepository(db),
		zap.NewNop(),
		testPaymentTerm,
		testTxTimeout,
	)

	return &serviceFixture{db: db, svc: svc}
}

func (f *serviceFixture) freezeClock(at time.Time) {
	f.svc.now = func() time.Time { return at }
}

func (f *serviceFixture) countOutbox(t *testing.T, eventType string) int {
	t.Helper()

	var count int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM OrderOutbox WHERE eventType = ?`, eventType).Scan(&count)
	require.NoError(t, err)
	return count
}

func (f *serviceFixture) fetchOrder(t *testing.T, id uint) *domain.Order {
	t.Helper()

	order, err := repository.NewMySQLOrderRepository(f.db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func TestLifecycleService_PlaceOrder_CompanyOrder(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-42",
		AccountKind: domain.AccountKindCompany,
		Items: []domain.OrderItem{
			{Description: "monitor", Quantity: 2, UnitPrice: 50000},
			{Description: "cable", Quantity: 4, UnitPrice: 750},
		},
	})

	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(103000), order.AmountDue)
	require.NotNil(t, order.PaymentDueAt)
	assert.True(t, order.PaymentDueAt.Equal(placedAt.Add(testPaymentTerm)))

	stored := f.fetchOrder(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	require.NotNil(t, stored.PaymentDueAt)
	assert.True(t, stored.PaymentDueAt.Equal(placedAt.Add(testPaymentTerm)))

	items, err := repository.NewMySQLOrderItemRepository(f.db).ListByOrderID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderPlaced))
}

func TestLifecycleService_PlaceOrder_CustomerOrderHasNoDueDate(t *testing.T) {
	f := newServiceFixture(t)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: domain.AccountKindCustomer,
		Items:       []domain.OrderItem{{Description: "mouse", Quantity: 1, UnitPrice: 4500}},
	})

	require.NoError(t, err)
	assert.Nil(t, order.PaymentDueAt)

	stored := f.fetchOrder(t, order.ID)
	assert.Nil(t, stored.PaymentDueAt)
}

func TestLifecycleService_RecordPayment_HappyPath(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-42",
		AccountKind: domain.AccountKindCompany,
		Items:       []domain.OrderItem{{Description: "monitor", Quantity: 1, UnitPrice: 15000}},
	})
	require.NoError(t, err)

	paidAt := placedAt.Add(5 * 24 * time.Hour)
	f.freezeClock(paidAt)

	paid, err := f.svc.RecordPayment(context.Background(), order.ID, 15000, paidAt)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, paid.PaidAt.Equal(paidAt))

	stored := f.fetchOrder(t, order.ID)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)

	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderPaid))
}

func TestLifecycleService_RecordPayment_AmountMismatchLeavesOrderOpen(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: domain.AccountKindCustomer,
		Items:       []domain.OrderItem{{Description: "mouse", Quantity: 1, UnitPrice: 15000}},
	})
	require.NoError(t, err)

	f.freezeClock(placedAt.Add(time.Hour))
	paid, err := f.svc.RecordPayment(context.Background(), order.ID, 14999, placedAt.Add(time.Hour))

	assert.Nil(t, paid)
	ame, ok := errors.IsAmountMismatchError(err)
	require.True(t, ok)
	assert.Equal(t, int64(15000), ame.Expected)
	assert.Equal(t, int64(14999), ame.Got)

	stored := f.fetchOrder(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.Nil(t, stored.PaidAt)

	assert.Equal(t, 0, f.countOutbox(t, contracts.EventOrderPaid))
}

func TestLifecycleService_RecordPayment_AlreadySettled(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: domain.AccountKindCustomer,
		Items:       []domain.OrderItem{{Description: "mouse", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	f.freezeClock(placedAt.Add(time.Hour))
	_, err = f.svc.RecordPayment(context.Background(), order.ID, 100, placedAt.Add(time.Hour))
	require.NoError(t, err)

	// El segundo pago se rechaza sin tocar la orden
	f.freezeClock(placedAt.Add(2 * time.Hour))
	paid, err := f.svc.RecordPayment(context.Background(), order.ID, 100, placedAt.Add(2*time.Hour))

	assert.Nil(t, paid)
	_, ok := errors.IsAlreadySettledError(err)
	assert.True(t, ok)

	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderPaid))
}

func TestLifecycleService_RecordPayment_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	paid, err := f.svc.RecordPayment(context.Background(), 99999, 100, time.Now().UTC().Add(-time.Minute))

	assert.Nil(t, paid)
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestLifecycleService_CancelOrder(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-42",
		AccountKind: domain.AccountKindCompany,
		Items:       []domain.OrderItem{{Description: "monitor", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	stored := f.fetchOrder(t, order.ID)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)

	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderCancelled))
}

func TestLifecycleService_CancelOrder_PaidOrderRejected(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: domain.AccountKindCustomer,
		Items:       []domain.OrderItem{{Description: "mouse", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	f.freezeClock(placedAt.Add(time.Hour))
	_, err = f.svc.RecordPayment(context.Background(), order.ID, 100, placedAt.Add(time.Hour))
	require.NoError(t, err)

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID)

	assert.Nil(t, cancelled)
	_, ok := errors.IsAlreadySettledError(err)
	assert.True(t, ok)
}

func TestLifecycleService_SweepOverdue(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	expired, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-42",
		AccountKind: domain.AccountKindCompany,
		Items:       []domain.OrderItem{{Description: "monitor", Quantity: 1, UnitPrice: 15000}},
	})
	require.NoError(t, err)

	stillOpen, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-43",
		AccountKind: domain.AccountKindCompany,
		Items:       []domain.OrderItem{{Description: "desk", Quantity: 1, UnitPrice: 20000}},
	})
	require.NoError(t, err)

	customer, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-7",
		AccountKind: domain.AccountKindCustomer,
		Items:       []domain.OrderItem{{Description: "mouse", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	// Push the second order's window out so only the first has expired
	laterDue := placedAt.Add(45 * 24 * time.Hour)
	_, err = f.db.Exec(`UPDATE Orders SET paymentDueAt = ? WHERE id = ?`, laterDue, stillOpen.ID)
	require.NoError(t, err)

	asOf := placedAt.Add(31 * 24 * time.Hour)
	f.freezeClock(asOf)

	result, err := f.svc.SweepOverdue(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, []uint{expired.ID}, result.MarkedIDs)
	assert.True(t, result.AsOf.Equal(asOf))

	assert.Equal(t, domain.OrderStatusOverdue, f.fetchOrder(t, expired.ID).Status)
	assert.Equal(t, domain.OrderStatusPending, f.fetchOrder(t, stillOpen.ID).Status)
	assert.Equal(t, domain.OrderStatusPending, f.fetchOrder(t, customer.ID).Status)

	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderOverdue))

	// Una segunda pasada no marca nada
	again, err := f.svc.SweepOverdue(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, again.MarkedIDs)
	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderOverdue))
}

func TestLifecycleService_SweepOverdue_DrainsBacklogInBatches(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	var ids []uint
	for i := 0; i < 5; i++ {
		order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
			PlacedBy:    "acct-42",
			AccountKind: domain.AccountKindCompany,
			Items:       []domain.OrderItem{{Description: "monitor", Quantity: 1, UnitPrice: 100}},
		})
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	f.freezeClock(placedAt.Add(31 * 24 * time.Hour))

	result, err := f.svc.SweepOverdue(context.Background(), 2)

	require.NoError(t, err)
	assert.ElementsMatch(t, ids, result.MarkedIDs)

	for _, id := range ids {
		assert.Equal(t, domain.OrderStatusOverdue, f.fetchOrder(t, id).Status)
	}
	assert.Equal(t, 5, f.countOutbox(t, contracts.EventOrderOverdue))
}

func TestLifecycleService_LatePaymentAfterSweep(t *testing.T) {
	f := newServiceFixture(t)

	placedAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	f.freezeClock(placedAt)

	order, err := f.svc.PlaceOrder(context.Background(), dto.PlaceOrderCommand{
		PlacedBy:    "acct-42",
		AccountKind: domain.AccountKindCompany,
		Items:       []domain.OrderItem{{Description: "monitor", Quantity: 1, UnitPrice: 15000}},
	})
	require.NoError(t, err)

	asOf := placedAt.Add(31 * 24 * time.Hour)
	f.freezeClock(asOf)

	_, err = f.svc.SweepOverdue(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusOverdue, f.fetchOrder(t, order.ID).Status)

	// La orden vencida todavía acepta el pago completo
	f.freezeClock(asOf.Add(2 * time.Hour))
	paid, err := f.svc.RecordPayment(context.Background(), order.ID, 15000, asOf.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, paid.Status)
	assert.Equal(t, 1, f.countOutbox(t, contracts.EventOrderPaid))
}
