package entity

import "time"

const (
	ProviderEventProcessed int32 = 10
	ProviderEventRejected  int32 = 20
)

// ProviderEvent records every inbound completion event, including the ones
// rejected before reaching the ledger.
type ProviderEvent struct {
	ID uint64

	OrderID *uint64

	Provider      string
	TransactionID string

	// ProviderEventID is the provider's own identifier for the event, when
	// the payload carries one. It ties the audit row back to the provider's
	// event log.
	ProviderEventID *string

	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
}
