package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/factory"
)

// Notifier is the outbound edge to the chat front end. Implementations are
// fire-and-forget from the ledger's point of view.
type Notifier interface {
	NotifyCustomer(ctx context.Context, telegramID int64, message string) error
}

type fulfillmentCustomerReader interface {
	FindByID(ctx context.Context, id uint64) (*entity.Customer, error)
}

// FulfillmentDispatcher discloses a product's content to the paying customer
// when their order completes. It runs only for compare-and-set winners, so
// delivery is at most once per order; notification failures are logged and
// never bounce back into ledger state.
type FulfillmentDispatcher struct {
	productRepo  productReader
	customerRepo fulfillmentCustomerReader
	notifier     Notifier
	logger       logrus.FieldLogger
}

func NewFulfillmentDispatcher(productRepo productReader, customerRepo fulfillmentCustomerReader, notifier Notifier) *FulfillmentDispatcher {
	return &FulfillmentDispatcher{
		productRepo:  productRepo,
		customerRepo: customerRepo,
		notifier:     notifier,
		logger:       factory.NewModuleLogger("fulfillment"),
	}
}

func (d *FulfillmentDispatcher) OrderCompleted(ctx context.Context, order *entity.Order) {
	product, customer, ok := d.resolve(ctx, order)
	if !ok {
		return
	}

	message := fmt.Sprintf(
		"Thank you for your purchase! Here's your digital product:\n%s",
		product.ContentURL,
	)
	if err := d.notifier.NotifyCustomer(ctx, customer.TelegramID, message); err != nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Error("content delivery notification failed")
	}
}

func (d *FulfillmentDispatcher) OrderFailed(ctx context.Context, order *entity.Order) {
	_, customer, ok := d.resolve(ctx, order)
	if !ok {
		return
	}

	message := fmt.Sprintf("Your payment for order #%d did not go through. Please try again.", order.ID)
	if err := d.notifier.NotifyCustomer(ctx, customer.TelegramID, message); err != nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Error("failure notification failed")
	}
}

func (d *FulfillmentDispatcher) resolve(ctx context.Context, order *entity.Order) (*entity.Product, *entity.Customer, bool) {
	product, err := d.productRepo.FindByID(ctx, order.ProductID)
	if err != nil || product == nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Error("product lookup failed during fulfillment")
		return nil, nil, false
	}

	customer, err := d.customerRepo.FindByID(ctx, order.CustomerID)
	if err != nil || customer == nil {
		d.logger.WithError(err).WithField("order_id", order.ID).Error("customer lookup failed during fulfillment")
		return nil, nil, false
	}

	return product, customer, true
}
