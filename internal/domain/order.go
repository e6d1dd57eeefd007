package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
)

// OrderItem is a single catalog line within an order.
type OrderItem struct {
	ProductID int64
	Quantity  int
}

// Order is the source-of-truth record for a purchase. Status only moves
// forward: created -> processing -> completed.
type Order struct {
	ID            int64
	CustomerName  string
	CustomerEmail string
	Status        OrderStatus
	Items         []OrderItem
	CreatedAt     time.Time
}
