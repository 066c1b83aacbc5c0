package dto

import "time"

type OrderResponse struct {
	TraceID      string              `json:"traceId"`
	OrderID      uint                `json:"orderId"`
	PlacedBy     string              `json:"placedBy"`
	AccountKind  string              `json:"accountKind"`
	AmountDue    int64               `json:"amountDue"`
	Status       string              `json:"status"`
	PlacedAt     time.Time           `json:"placedAt"`
	PaymentDueAt *time.Time          `json:"paymentDueAt,omitempty"`
	PaidAt       *time.Time          `json:"paidAt,omitempty"`
	Items        []OrderItemResponse `json:"items,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

type OrderItemResponse struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Subtotal    int64  `json:"subtotal"`
}

type OrderSummary struct {
	OrderID      uint       `json:"orderId"`
	PlacedBy     string     `json:"placedBy"`
	AccountKind  string     `json:"accountKind"`
	AmountDue    int64      `json:"amountDue"`
	Status       string     `json:"status"`
	PlacedAt     time.Time  `json:"placedAt"`
	PaymentDueAt *time.Time `json:"paymentDueAt,omitempty"`
	PaidAt       *time.Time `json:"paidAt,omitempty"`
}

type OrderListResponse struct {
	TraceID   string         `json:"traceId"`
	Orders    []OrderSummary `json:"orders"`
	Timestamp time.Time      `json:"timestamp"`
}

type SweepResponse struct {
	TraceID     string    `json:"traceId"`
	MarkedCount int       `json:"markedCount"`
	OrderIDs    []uint    `json:"orderIds"`
	AsOf        time.Time `json:"asOf"`
	Timestamp   time.Time `json:"timestamp"`
}

type ReceivableResponse struct {
	OrderID      uint      `json:"orderId"`
	PlacedBy     string    `json:"placedBy"`
	AmountDue    int64     `json:"amountDue"`
	Status       string    `json:"status"`
	PlacedAt     time.Time `json:"placedAt"`
	PaymentDueAt time.Time `json:"paymentDueAt"`
	DaysPastDue  int       `json:"daysPastDue"`
}

type ReceivablesResponse struct {
	TraceID     string               `json:"traceId"`
	Receivables []ReceivableResponse `json:"receivables"`
	TotalDue    int64                `json:"totalDue"`
	AsOf        time.Time            `json:"asOf"`
	Timestamp   time.Time            `json:"timestamp"`
}

type OrderErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}
