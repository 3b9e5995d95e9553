package repository

import (
	"context"
	"database/sql"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (name, description, price_cents, currency, content_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		product.Name,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.ContentURL,
		product.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	product.ID = uint64(id)

	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id uint64) (*entity.Product, error) {
	query := `
		SELECT id, name, description, price_cents, currency, content_url, created_at
		FROM products
		WHERE id = ?
	`

	product := &entity.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.PriceCents,
		&product.Currency,
		&product.ContentURL,
		&product.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return product, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*entity.Product, error) {
	query := `
		SELECT id, name, description, price_cents, currency, content_url, created_at
		FROM products
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*entity.Product, 0)
	for rows.Next() {
		product := &entity.Product{}
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.PriceCents,
			&product.Currency,
			&product.ContentURL,
			&product.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
