package entity

import "time"

// OrderEvent is an append-only audit row for order lifecycle changes.
type OrderEvent struct {
	ID uint64

	OrderID uint64

	EventType string

	OldStatus *PaymentStatus
	NewStatus PaymentStatus

	CreatedAt time.Time
}
