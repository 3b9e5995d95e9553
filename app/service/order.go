package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/factory"
	"github.com/weed35937/tele-bot-digital/app/gateway"
	"github.com/weed35937/tele-bot-digital/config"
)

const defaultBatchSize = int32(100)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	TransitionStatus(ctx context.Context, transactionID string, to entity.PaymentStatus, completedAt time.Time) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Order, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uint64) (*entity.Product, error)
}

type customerReader interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*entity.Customer, error)
}

type orderEventRecorder interface {
	Create(ctx context.Context, event *entity.OrderEvent) error
}

type fulfillmentNotifier interface {
	OrderCompleted(ctx context.Context, order *entity.Order)
	OrderFailed(ctx context.Context, order *entity.Order)
}

type TransitionOutcome int32

const (
	// TransitionApplied means the caller won the single PENDING->terminal
	// transition and owns fulfillment.
	TransitionApplied TransitionOutcome = 1
	// TransitionAlreadyTerminal means the order was terminal before or
	// another caller won the race. Not an error.
	TransitionAlreadyTerminal TransitionOutcome = 2
)

type TransitionResult struct {
	Outcome TransitionOutcome
	Order   *entity.Order
}

// OrderService is the order ledger: it creates PENDING orders tied to
// gateway-issued references and applies their one-way terminal transition.
type OrderService struct {
	orderRepo    orderRepository
	productRepo  productReader
	customerRepo customerReader
	eventRepo    orderEventRecorder
	gateways     *gateway.Registry
	fulfillment  fulfillmentNotifier
	storeCfg     config.StoreConfig
	logger       logrus.FieldLogger
}

func NewOrderService(
	orderRepo orderRepository,
	productRepo productReader,
	customerRepo customerReader,
	eventRepo orderEventRecorder,
	gateways *gateway.Registry,
	fulfillment fulfillmentNotifier,
	storeCfg config.StoreConfig,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		eventRepo:    eventRepo,
		gateways:     gateways,
		fulfillment:  fulfillment,
		storeCfg:     storeCfg,
		logger:       factory.NewModuleLogger("order-ledger"),
	}
}

// InitiatePurchase creates a charge at the provider matching method and
// persists the PENDING order carrying the provider's reference. The order row
// is written before the payer URL is handed back to the caller; a write
// failure after a successful charge is reported as ambiguous because the
// external charge is live.
func (s *OrderService) InitiatePurchase(ctx context.Context, telegramID int64, productID uint64, method entity.PaymentMethod) (*entity.Order, error) {
	customer, err := s.customerRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	gw, err := s.gateways.Get(method)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSupported) {
			return nil, ErrMethodUnsupported
		}
		return nil, err
	}

	charge, err := gw.CreateCharge(ctx, &gateway.ChargeInput{
		Reference:   uuid.NewString(),
		ProductName: product.Name,
		Description: product.Description,
		AmountCents: product.PriceCents,
		Currency:    product.Currency,
		CustomerRef: strconv.FormatInt(customer.TelegramID, 10),
	})
	if err != nil {
		if errors.Is(err, gateway.ErrAmbiguous) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"method":     method.String(),
				"product_id": product.ID,
			}).Warn("charge outcome ambiguous, manual reconciliation required")
			return nil, ErrAmbiguousOutcome
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	now := time.Now().UTC()
	order := &entity.Order{
		CustomerID:    customer.ID,
		ProductID:     product.ID,
		PaymentMethod: method,
		Status:        entity.StatusPending,
		AmountCents:   product.PriceCents,
		Currency:      product.Currency,
		TransactionID: charge.TransactionID,
		PayerURL:      charge.PayerURL,
		CreatedAt:     now,
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"transaction_id": charge.TransactionID,
			"method":         method.String(),
		}).Error("order write failed after successful charge, manual reconciliation required")
		return nil, ErrAmbiguousOutcome
	}

	_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
		OrderID:   order.ID,
		EventType: "order_created",
		NewStatus: order.Status,
		CreatedAt: now,
	})

	return order, nil
}

// ApplyCompletion is the single linearization point of the order lifecycle.
// Only the caller that wins the storage-level compare-and-set triggers
// fulfillment; everyone else observes AlreadyTerminal.
func (s *OrderService) ApplyCompletion(ctx context.Context, transactionID string, outcome entity.PaymentStatus) (*TransitionResult, error) {
	if !outcome.Terminal() {
		return nil, fmt.Errorf("%w: completion outcome must be terminal", ErrValidation)
	}

	order, err := s.orderRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrUnknownReference
	}
	if order.Status.Terminal() {
		return &TransitionResult{Outcome: TransitionAlreadyTerminal, Order: order}, nil
	}

	now := time.Now().UTC()
	won, err := s.orderRepo.TransitionStatus(ctx, transactionID, outcome, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race; report whatever state won.
		current, err := s.orderRepo.FindByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrUnknownReference
		}
		return &TransitionResult{Outcome: TransitionAlreadyTerminal, Order: current}, nil
	}

	oldStatus := order.Status
	order.Status = outcome
	order.CompletedAt = &now

	_ = s.eventRepo.Create(ctx, &entity.OrderEvent{
		OrderID:   order.ID,
		EventType: "order_" + outcome.String(),
		OldStatus: &oldStatus,
		NewStatus: outcome,
		CreatedAt: now,
	})

	if outcome == entity.StatusCompleted {
		s.fulfillment.OrderCompleted(ctx, order)
	} else {
		s.fulfillment.OrderFailed(ctx, order)
	}

	return &TransitionResult{Outcome: TransitionApplied, Order: order}, nil
}

// ReconcileStalePending polls providers for orders stuck in PENDING and feeds
// any terminal answer through the regular completion path.
func (s *OrderService) ReconcileStalePending(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.storeCfg.ReconcileStaleAfter)
	orders, err := s.orderRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range orders {
		gw, err := s.gateways.Get(order.PaymentMethod)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		status, err := gw.GetChargeStatus(ctx, order.TransactionID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !status.Terminal() {
			continue
		}

		if _, err := s.ApplyCompletion(ctx, order.TransactionID, status); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *OrderService) batchSize() int32 {
	if s.storeCfg.JobBatchSize > 0 {
		return s.storeCfg.JobBatchSize
	}
	return defaultBatchSize
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
