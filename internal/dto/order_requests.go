package dto

import "time"

type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type OrderItemRequest struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

type RecordPaymentRequest struct {
	Amount int64     `json:"amount"`
	PaidAt time.Time `json:"paidAt"`
}
