package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

var ErrCustomerAlreadyExists = errors.New("customer already exists")

type CustomerRepository struct {
	db DBTX
}

func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	query := `
		INSERT INTO customers (telegram_id, username, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		customer.TelegramID,
		nullableStringValue(customer.Username),
		customer.FirstName,
		nullableStringValue(customer.LastName),
		customer.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCustomerAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	customer.ID = uint64(id)

	return nil
}

func (r *CustomerRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*entity.Customer, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, created_at
		FROM customers
		WHERE telegram_id = ?
		LIMIT 1
	`

	customer := &entity.Customer{}
	var username sql.NullString
	var lastName sql.NullString

	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(
		&customer.ID,
		&customer.TelegramID,
		&username,
		&customer.FirstName,
		&lastName,
		&customer.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	customer.Username = stringPtrFromNull(username)
	customer.LastName = stringPtrFromNull(lastName)

	return customer, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uint64) (*entity.Customer, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, created_at
		FROM customers
		WHERE id = ?
	`

	customer := &entity.Customer{}
	var username sql.NullString
	var lastName sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.TelegramID,
		&username,
		&customer.FirstName,
		&lastName,
		&customer.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	customer.Username = stringPtrFromNull(username)
	customer.LastName = stringPtrFromNull(lastName)

	return customer, nil
}
