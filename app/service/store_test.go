package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/repository"
	"github.com/weed35937/tele-bot-digital/config"
)

type storeProductRepo struct {
	products map[uint64]*entity.Product
	nextID   uint64
}

func newStoreProductRepo() *storeProductRepo {
	return &storeProductRepo{products: map[uint64]*entity.Product{}, nextID: 1}
}

func (r *storeProductRepo) Create(_ context.Context, product *entity.Product) error {
	id := r.nextID
	r.nextID++
	copyItem := *product
	copyItem.ID = id
	r.products[id] = &copyItem
	product.ID = id
	return nil
}

func (r *storeProductRepo) FindByID(_ context.Context, id uint64) (*entity.Product, error) {
	item, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *storeProductRepo) List(_ context.Context) ([]*entity.Product, error) {
	items := make([]*entity.Product, 0, len(r.products))
	for _, item := range r.products {
		copyItem := *item
		items = append(items, &copyItem)
	}
	return items, nil
}

type storeCustomerRepo struct {
	customers map[int64]*entity.Customer
	nextID    uint64

	// raceOnCreate makes the first Create lose to a concurrent insert.
	raceOnCreate bool
	createCalls  int
}

func newStoreCustomerRepo() *storeCustomerRepo {
	return &storeCustomerRepo{customers: map[int64]*entity.Customer{}, nextID: 1}
}

func (r *storeCustomerRepo) Create(_ context.Context, customer *entity.Customer) error {
	r.createCalls++
	if r.raceOnCreate {
		r.raceOnCreate = false
		id := r.nextID
		r.nextID++
		winner := *customer
		winner.ID = id
		r.customers[customer.TelegramID] = &winner
		return repository.ErrCustomerAlreadyExists
	}
	if _, ok := r.customers[customer.TelegramID]; ok {
		return repository.ErrCustomerAlreadyExists
	}
	id := r.nextID
	r.nextID++
	copyItem := *customer
	copyItem.ID = id
	r.customers[customer.TelegramID] = &copyItem
	customer.ID = id
	return nil
}

func (r *storeCustomerRepo) FindByTelegramID(_ context.Context, telegramID int64) (*entity.Customer, error) {
	item, ok := r.customers[telegramID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

type storeOrderRepo struct {
	orders []*entity.Order
}

func (r *storeOrderRepo) ListByCustomerID(_ context.Context, customerID uint64) ([]*entity.Order, error) {
	items := make([]*entity.Order, 0)
	for _, item := range r.orders {
		if item.CustomerID != customerID {
			continue
		}
		copyItem := *item
		items = append(items, &copyItem)
	}
	return items, nil
}

func newStoreServiceForTest(products *storeProductRepo, customers *storeCustomerRepo, orders *storeOrderRepo) *StoreService {
	return NewStoreService(
		products,
		customers,
		orders,
		[]int64{42},
		config.StoreConfig{Currency: "USD"},
	)
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newStoreServiceForTest(newStoreProductRepo(), newStoreCustomerRepo(), &storeOrderRepo{})

	_, err := svc.CreateProduct(context.Background(), 100, ProductInput{
		Name:       "E-book",
		Price:      "19.99",
		ContentURL: "https://files.example/book.pdf",
	})
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestCreateProductStoresMinorUnits(t *testing.T) {
	products := newStoreProductRepo()
	svc := newStoreServiceForTest(products, newStoreCustomerRepo(), &storeOrderRepo{})

	product, err := svc.CreateProduct(context.Background(), 42, ProductInput{
		Name:        "  E-book ",
		Description: "A digital book",
		Price:       "19.99",
		ContentURL:  "https://files.example/book.pdf",
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if product.PriceCents != 1999 {
		t.Fatalf("expected 1999 cents, got %d", product.PriceCents)
	}
	if product.Name != "E-book" {
		t.Fatalf("expected trimmed name, got %q", product.Name)
	}
	if product.Currency != "USD" {
		t.Fatalf("expected store currency, got %q", product.Currency)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc := newStoreServiceForTest(newStoreProductRepo(), newStoreCustomerRepo(), &storeOrderRepo{})

	cases := []ProductInput{
		{Name: "", Price: "19.99", ContentURL: "https://files.example/book.pdf"},
		{Name: "E-book", Price: "19.99", ContentURL: "   "},
		{Name: "E-book", Price: "free", ContentURL: "https://files.example/book.pdf"},
		{Name: "E-book", Price: "0", ContentURL: "https://files.example/book.pdf"},
		{Name: "E-book", Price: "-5", ContentURL: "https://files.example/book.pdf"},
		{Name: "E-book", Price: "19.999", ContentURL: "https://files.example/book.pdf"},
	}
	for _, input := range cases {
		if _, err := svc.CreateProduct(context.Background(), 42, input); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", input, err)
		}
	}
}

func TestParsePriceCents(t *testing.T) {
	cents, err := ParsePriceCents("19.99")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cents != 1999 {
		t.Fatalf("expected 1999, got %d", cents)
	}

	cents, err = ParsePriceCents("5")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cents != 500 {
		t.Fatalf("expected 500, got %d", cents)
	}

	cents, err = ParsePriceCents("0.1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cents != 10 {
		t.Fatalf("expected 10, got %d", cents)
	}

	if _, err := ParsePriceCents("19.995"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected sub-cent rejection, got %v", err)
	}
	if _, err := ParsePriceCents("0"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected zero rejection, got %v", err)
	}
}

func TestRegisterCustomerIsIdempotent(t *testing.T) {
	customers := newStoreCustomerRepo()
	svc := newStoreServiceForTest(newStoreProductRepo(), customers, &storeOrderRepo{})

	first, err := svc.RegisterCustomer(context.Background(), 100, "alice", "Alice", "")
	if err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	second, err := svc.RegisterCustomer(context.Background(), 100, "alice", "Alice", "")
	if err != nil {
		t.Fatalf("second register failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same customer, first=%d second=%d", first.ID, second.ID)
	}
	if customers.createCalls != 1 {
		t.Fatalf("expected a single insert, got %d", customers.createCalls)
	}
	if second.LastName != nil {
		t.Fatal("empty last name must be stored as null")
	}
}

func TestRegisterCustomerLosingInsertRaceReReads(t *testing.T) {
	customers := newStoreCustomerRepo()
	customers.raceOnCreate = true
	svc := newStoreServiceForTest(newStoreProductRepo(), customers, &storeOrderRepo{})

	customer, err := svc.RegisterCustomer(context.Background(), 100, "alice", "Alice", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if customer == nil || customer.TelegramID != 100 {
		t.Fatalf("expected the winner's row, got %+v", customer)
	}
}

func TestGetProductUnknown(t *testing.T) {
	svc := newStoreServiceForTest(newStoreProductRepo(), newStoreCustomerRepo(), &storeOrderRepo{})

	_, err := svc.GetProduct(context.Background(), 999)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestOrderHistoryUnknownCustomerIsEmpty(t *testing.T) {
	svc := newStoreServiceForTest(newStoreProductRepo(), newStoreCustomerRepo(), &storeOrderRepo{})

	summaries, err := svc.OrderHistory(context.Background(), 100)
	if err != nil {
		t.Fatalf("order history failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected empty history, got %d", len(summaries))
	}
}

func TestOrderHistoryAttachesProductNames(t *testing.T) {
	products := newStoreProductRepo()
	products.products[1] = &entity.Product{ID: 1, Name: "E-book", PriceCents: 1999, Currency: "USD"}
	products.nextID = 2

	customers := newStoreCustomerRepo()
	customers.customers[100] = &entity.Customer{ID: 7, TelegramID: 100, FirstName: "Alice"}

	now := time.Now().UTC()
	orders := &storeOrderRepo{orders: []*entity.Order{
		{ID: 1, CustomerID: 7, ProductID: 1, Status: entity.StatusCompleted, AmountCents: 1999, Currency: "USD", TransactionID: "cc_1", CreatedAt: now},
		{ID: 2, CustomerID: 7, ProductID: 1, Status: entity.StatusPending, AmountCents: 1999, Currency: "USD", TransactionID: "cc_2", CreatedAt: now},
		{ID: 3, CustomerID: 8, ProductID: 1, Status: entity.StatusPending, AmountCents: 1999, Currency: "USD", TransactionID: "cc_3", CreatedAt: now},
	}}

	svc := newStoreServiceForTest(products, customers, orders)

	summaries, err := svc.OrderHistory(context.Background(), 100)
	if err != nil {
		t.Fatalf("order history failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(summaries))
	}
	for _, summary := range summaries {
		if summary.ProductName != "E-book" {
			t.Fatalf("expected product name attached, got %q", summary.ProductName)
		}
	}
}
