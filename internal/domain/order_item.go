package domain

type OrderItem struct {
	ID          uint
	OrderID     uint
	Description string
	Quantity    int
	UnitPrice   int64
}

func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// ResolveAmountDue sums the item subtotals in minor units.
func ResolveAmountDue(items []OrderItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
