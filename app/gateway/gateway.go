package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/weed35937/tele-bot-digital/app/entity"
)

var (
	ErrNotSupported = errors.New("payment method is not supported")

	// ErrAmbiguous marks outcomes where the provider may or may not have
	// created the charge (timeouts, canceled requests). Callers must not
	// treat it as a definite failure.
	ErrAmbiguous = errors.New("charge outcome is ambiguous")
)

type ChargeInput struct {
	// Reference is an idempotency key generated by the caller and forwarded
	// to the provider as client metadata.
	Reference   string
	ProductName string
	Description string
	AmountCents int64
	Currency    string

	// CustomerRef is opaque metadata for provider-side reconciliation. It is
	// never used for authorization.
	CustomerRef string
}

type ChargeOutput struct {
	// TransactionID is the provider-assigned external reference, unique and
	// stable for the life of the charge.
	TransactionID string
	PayerURL      string
}

type CompletionEvent struct {
	TransactionID   string
	Status          entity.PaymentStatus
	ProviderEventID *string
}

type Gateway interface {
	Method() entity.PaymentMethod
	CreateCharge(ctx context.Context, input *ChargeInput) (*ChargeOutput, error)
	VerifyAndParseEvent(ctx context.Context, payload []byte, signature string) (*CompletionEvent, error)
	GetChargeStatus(ctx context.Context, transactionID string) (entity.PaymentStatus, error)
}

// classifyTransportError folds timeouts and cancellation into ErrAmbiguous:
// the request may have reached the provider even though no response came back.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrAmbiguous, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrAmbiguous, err)
	}
	return err
}
