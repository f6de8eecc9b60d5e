package domain

import "time"

// OrderLine is one component of an accepted configuration projected
// into an order.
type OrderLine struct {
	SlotID    string  `json:"slotId"`
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
}

// Order is an accepted configuration handed off to order processing.
type Order struct {
	ID             string        `json:"id"`
	ConfiguratorID int64         `json:"configuratorId"`
	Configuration  Configuration `json:"configuration"`
	Quantities     Quantities    `json:"quantities,omitempty"`
	Lines          []OrderLine   `json:"lines"`
	Subtotal       float64       `json:"subtotal"`
	WarrantyCost   float64       `json:"warrantyCost"`
	Total          float64       `json:"total"`
	Default        bool          `json:"isDefault"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Order statuses.
const (
	OrderStatusPending  = "pending"
	OrderStatusAccepted = "accepted"
)
