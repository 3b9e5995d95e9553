package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/repository"
	"github.com/weed35937/tele-bot-digital/config"
)

type storeProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	FindByID(ctx context.Context, id uint64) (*entity.Product, error)
	List(ctx context.Context) ([]*entity.Product, error)
}

type storeCustomerRepository interface {
	Create(ctx context.Context, customer *entity.Customer) error
	FindByTelegramID(ctx context.Context, telegramID int64) (*entity.Customer, error)
}

type orderHistoryReader interface {
	ListByCustomerID(ctx context.Context, customerID uint64) ([]*entity.Order, error)
}

type ProductInput struct {
	Name        string
	Description string
	Price       string
	ContentURL  string
}

type OrderSummary struct {
	OrderID     uint64
	ProductName string
	AmountCents int64
	Currency    string
	Status      entity.PaymentStatus
	CreatedAt   time.Time
}

// StoreService covers the catalog and the customer directory.
type StoreService struct {
	productRepo  storeProductRepository
	customerRepo storeCustomerRepository
	orderRepo    orderHistoryReader
	adminIDs     map[int64]struct{}
	storeCfg     config.StoreConfig
}

func NewStoreService(
	productRepo storeProductRepository,
	customerRepo storeCustomerRepository,
	orderRepo orderHistoryReader,
	adminIDs []int64,
	storeCfg config.StoreConfig,
) *StoreService {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	return &StoreService{
		productRepo:  productRepo,
		customerRepo: customerRepo,
		orderRepo:    orderRepo,
		adminIDs:     admins,
		storeCfg:     storeCfg,
	}
}

func (s *StoreService) IsAdmin(telegramID int64) bool {
	_, ok := s.adminIDs[telegramID]
	return ok
}

func (s *StoreService) ListProducts(ctx context.Context) ([]*entity.Product, error) {
	return s.productRepo.List(ctx)
}

func (s *StoreService) GetProduct(ctx context.Context, id uint64) (*entity.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *StoreService) CreateProduct(ctx context.Context, adminTelegramID int64, input ProductInput) (*entity.Product, error) {
	if !s.IsAdmin(adminTelegramID) {
		return nil, ErrNotAdmin
	}

	name := strings.TrimSpace(input.Name)
	contentURL := strings.TrimSpace(input.ContentURL)
	if name == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if contentURL == "" {
		return nil, fmt.Errorf("%w: content url is required", ErrValidation)
	}

	priceCents, err := ParsePriceCents(input.Price)
	if err != nil {
		return nil, err
	}

	product := &entity.Product{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		PriceCents:  priceCents,
		Currency:    s.storeCfg.Currency,
		ContentURL:  contentURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// RegisterCustomer is an idempotent get-or-create keyed by Telegram id.
// A concurrent insert losing to the unique key is resolved by re-reading.
func (s *StoreService) RegisterCustomer(ctx context.Context, telegramID int64, username, firstName, lastName string) (*entity.Customer, error) {
	existing, err := s.customerRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	customer := &entity.Customer{
		TelegramID: telegramID,
		Username:   optionalString(username),
		FirstName:  strings.TrimSpace(firstName),
		LastName:   optionalString(lastName),
		CreatedAt:  time.Now().UTC(),
	}
	err = s.customerRepo.Create(ctx, customer)
	if err == nil {
		return customer, nil
	}
	if errors.Is(err, repository.ErrCustomerAlreadyExists) {
		return s.customerRepo.FindByTelegramID(ctx, telegramID)
	}
	return nil, err
}

// OrderHistory returns the customer's orders with product names attached.
// A customer with no orders gets an empty slice.
func (s *StoreService) OrderHistory(ctx context.Context, telegramID int64) ([]*OrderSummary, error) {
	customer, err := s.customerRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return []*OrderSummary{}, nil
	}

	orders, err := s.orderRepo.ListByCustomerID(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	names := make(map[uint64]string, len(orders))
	summaries := make([]*OrderSummary, 0, len(orders))
	for _, order := range orders {
		name, ok := names[order.ProductID]
		if !ok {
			product, err := s.productRepo.FindByID(ctx, order.ProductID)
			if err != nil {
				return nil, err
			}
			if product != nil {
				name = product.Name
			}
			names[order.ProductID] = name
		}

		summaries = append(summaries, &OrderSummary{
			OrderID:     order.ID,
			ProductName: name,
			AmountCents: order.AmountCents,
			Currency:    order.Currency,
			Status:      order.Status,
			CreatedAt:   order.CreatedAt,
		})
	}

	return summaries, nil
}

// ParsePriceCents converts an administrator-entered decimal price such as
// "19.99" into integer minor units, rejecting sub-cent precision.
func ParsePriceCents(raw string) (int64, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: price must be a decimal number", ErrValidation)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: price must be positive", ErrValidation)
	}

	cents := price.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: price cannot have sub-cent precision", ErrValidation)
	}

	return cents.IntPart(), nil
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
