package contracts

import "time"

// Routing keys for order lifecycle events published to the broker.
const (
	EventOrderPlaced    = "orders.placed"
	EventOrderPaid      = "orders.paid"
	EventOrderCancelled = "orders.cancelled"
	EventOrderOverdue   = "orders.overdue"
)

type OrderPlacedEvent struct {
	EventID      string     `json:"event_id"`
	OrderID      uint       `json:"order_id"`
	PlacedBy     string     `json:"placed_by"`
	AccountKind  string     `json:"account_kind"`
	AmountDue    int64      `json:"amount_due"`
	PlacedAt     time.Time  `json:"placed_at"`
	PaymentDueAt *time.Time `json:"payment_due_at,omitempty"`
}

type OrderPaidEvent struct {
	EventID  string    `json:"event_id"`
	OrderID  uint      `json:"order_id"`
	PlacedBy string    `json:"placed_by"`
	Amount   int64     `json:"amount"`
	PaidAt   time.Time `json:"paid_at"`
}

type OrderCancelledEvent struct {
	EventID     string    `json:"event_id"`
	OrderID     uint      `json:"order_id"`
	PlacedBy    string    `json:"placed_by"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type OrderOverdueEvent struct {
	EventID      string    `json:"event_id"`
	OrderID      uint      `json:"order_id"`
	PlacedBy     string    `json:"placed_by"`
	AmountDue    int64     `json:"amount_due"`
	PaymentDueAt time.Time `json:"payment_due_at"`
	DetectedAt   time.Time `json:"detected_at"`
}

// OutboxMessage is a pending event row claimed by the dispatcher.
type OutboxMessage struct {
	ID        int64
	EventID   string
	EventType string
	Payload   []byte
	Attempts  int
}
