package core

import "time"

// OrderStatus is the lifecycle state of an order. Status changes arrive
// asynchronously from provider webhooks; clients only observe snapshots.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal returns true once the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

// OrderSnapshot is a read-only view of an order's payment state.
type OrderSnapshot struct {
	ID         string      `json:"id"`
	Status     OrderStatus `json:"status"`
	ProviderID string      `json:"payment_provider_id,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
