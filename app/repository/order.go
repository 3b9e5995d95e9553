package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			customer_id, product_id, payment_method, payment_status,
			amount_cents, currency, transaction_id, payer_url,
			created_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.CustomerID,
		order.ProductID,
		int32(order.PaymentMethod),
		int32(order.Status),
		order.AmountCents,
		order.Currency,
		order.TransactionID,
		order.PayerURL,
		order.CreatedAt,
		nullableTimeValue(order.CompletedAt),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)

	return nil
}

// TransitionStatus applies the single terminal transition for the order
// identified by transactionID. The WHERE clause only matches while the order
// is still pending, so among any number of concurrent callers exactly one
// observes true.
func (r *OrderRepository) TransitionStatus(ctx context.Context, transactionID string, to entity.PaymentStatus, completedAt time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = ?, completed_at = ?
		WHERE transaction_id = ? AND payment_status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		int32(to),
		completedAt,
		transactionID,
		int32(entity.StatusPending),
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error) {
	query := selectOrderColumns + `
		WHERE transaction_id = ?
		LIMIT 1
	`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, transactionID), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := selectOrderColumns + `
		WHERE id = ?
	`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListByCustomerID(ctx context.Context, customerID uint64) ([]*entity.Order, error) {
	query := selectOrderColumns + `
		WHERE customer_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *OrderRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error) {
	query := selectOrderColumns + `
		WHERE payment_status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, int32(entity.StatusPending), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows)
}

const selectOrderColumns = `
	SELECT id, customer_id, product_id, payment_method, payment_status,
		amount_cents, currency, transaction_id, payer_url,
		created_at, completed_at
	FROM orders
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var method int32
	var status int32
	var completedAt sql.NullTime

	err := scan.Scan(
		&order.ID,
		&order.CustomerID,
		&order.ProductID,
		&method,
		&status,
		&order.AmountCents,
		&order.Currency,
		&order.TransactionID,
		&order.PayerURL,
		&order.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return err
	}

	order.PaymentMethod = entity.PaymentMethod(method)
	order.Status = entity.PaymentStatus(status)
	order.CompletedAt = timePtrFromNull(completedAt)

	return nil
}

func collectOrders(rows *sql.Rows) ([]*entity.Order, error) {
	orders := make([]*entity.Order, 0)
	for rows.Next() {
		order := &entity.Order{}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
