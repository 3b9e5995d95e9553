package repository

import (
	"context"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

type ProviderEventRepository struct {
	db DBTX
}

func NewProviderEventRepository(db DBTX) *ProviderEventRepository {
	return &ProviderEventRepository{db: db}
}

func (r *ProviderEventRepository) Create(ctx context.Context, event *entity.ProviderEvent) error {
	query := `
		INSERT INTO provider_events (
			order_id, provider, transaction_id, provider_event_id, signature, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableOrderIDValue(event.OrderID),
		event.Provider,
		event.TransactionID,
		nullableStringValue(event.ProviderEventID),
		event.Signature,
		event.PayloadJSON,
		event.Status,
		nullableStringValue(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func nullableOrderIDValue(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
