package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/weed35937/tele-bot-digital/app/entity"
	"github.com/weed35937/tele-bot-digital/app/factory"
	"github.com/weed35937/tele-bot-digital/app/gateway"
)

type completionApplier interface {
	ApplyCompletion(ctx context.Context, transactionID string, outcome entity.PaymentStatus) (*TransitionResult, error)
}

type providerEventRecorder interface {
	Create(ctx context.Context, event *entity.ProviderEvent) error
}

// IntakeService validates inbound provider completion events and maps them to
// ledger transitions. Delivery is assumed to be at-least-once and unordered;
// idempotency comes from the ledger's compare-and-set.
type IntakeService struct {
	gateways       *gateway.Registry
	ledger         completionApplier
	providerEvents providerEventRecorder
	logger         logrus.FieldLogger
}

func NewIntakeService(gateways *gateway.Registry, ledger completionApplier, providerEvents providerEventRecorder) *IntakeService {
	return &IntakeService{
		gateways:       gateways,
		ledger:         ledger,
		providerEvents: providerEvents,
		logger:         factory.NewModuleLogger("reconciliation-intake"),
	}
}

func (s *IntakeService) HandleCompletionEvent(ctx context.Context, method entity.PaymentMethod, payload []byte, signature string) error {
	gw, err := s.gateways.Get(method)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSupported) {
			return ErrMethodUnsupported
		}
		return err
	}

	event, err := gw.VerifyAndParseEvent(ctx, payload, signature)
	if err != nil {
		s.logger.WithError(err).WithField("method", method.String()).Warn("rejected completion event, possible forgery")
		s.recordRejected(ctx, method, "", payload, signature, err.Error())
		return ErrEventRejected
	}

	transactionID := strings.TrimSpace(event.TransactionID)
	if transactionID == "" {
		s.recordRejected(ctx, method, "", payload, signature, "event carries no transaction reference")
		return ErrEventRejected
	}

	if !event.Status.Terminal() {
		// Informational event types are acknowledged without touching the
		// ledger.
		s.record(ctx, method, transactionID, event.ProviderEventID, nil, payload, signature, entity.ProviderEventProcessed, nil)
		return nil
	}

	result, err := s.ledger.ApplyCompletion(ctx, transactionID, event.Status)
	if err != nil {
		if errors.Is(err, ErrUnknownReference) {
			s.logger.WithFields(logrus.Fields{
				"method":         method.String(),
				"transaction_id": transactionID,
			}).Warn("completion event for unknown reference")
			reason := "unknown transaction reference"
			s.record(ctx, method, transactionID, event.ProviderEventID, nil, payload, signature, entity.ProviderEventRejected, &reason)
		}
		return err
	}

	if result.Outcome == TransitionAlreadyTerminal {
		s.logger.WithFields(logrus.Fields{
			"method":         method.String(),
			"transaction_id": transactionID,
			"status":         result.Order.Status.String(),
		}).Info("duplicate completion event ignored")
	}

	s.record(ctx, method, transactionID, event.ProviderEventID, &result.Order.ID, payload, signature, entity.ProviderEventProcessed, nil)

	return nil
}

func (s *IntakeService) recordRejected(ctx context.Context, method entity.PaymentMethod, transactionID string, payload []byte, signature, reason string) {
	s.record(ctx, method, transactionID, nil, nil, payload, signature, entity.ProviderEventRejected, &reason)
}

func (s *IntakeService) record(ctx context.Context, method entity.PaymentMethod, transactionID string, providerEventID *string, orderID *uint64, payload []byte, signature string, status int32, reason *string) {
	_ = s.providerEvents.Create(ctx, &entity.ProviderEvent{
		OrderID:         orderID,
		Provider:        method.String(),
		TransactionID:   transactionID,
		ProviderEventID: providerEventID,
		Signature:       signature,
		PayloadJSON:     string(payload),
		Status:          status,
		Error:           reason,
		CreatedAt:       time.Now().UTC(),
	})
}
