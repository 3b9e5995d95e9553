package entity

import "time"

// Product is a sellable digital good. ContentURL is disclosed to a customer
// only after their order completes.
type Product struct {
	ID uint64

	Name        string
	Description string

	PriceCents int64
	Currency   string

	ContentURL string

	CreatedAt time.Time
}
