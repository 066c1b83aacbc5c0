package dto

import (
	"time"

	"arrears/internal/domain"
)

type PlaceOrderCommand struct {
	PlacedBy    string
	AccountKind domain.AccountKind
	Items       []domain.OrderItem
}

type SweepResult struct {
	AsOf      time.Time
	MarkedIDs []uint
}
