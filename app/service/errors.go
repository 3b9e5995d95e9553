package service

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrNotAdmin          = errors.New("administrator access required")
	ErrProductNotFound   = errors.New("product not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrMethodUnsupported = errors.New("payment method is not supported")

	// ErrGatewayFailure is a definite provider-side failure: no charge was
	// created and no order persisted.
	ErrGatewayFailure = errors.New("gateway charge failed")

	// ErrAmbiguousOutcome means a live external charge may exist without a
	// matching local order. Logged for manual reconciliation, never shown to
	// the customer as an ordinary failure.
	ErrAmbiguousOutcome = errors.New("payment outcome requires manual reconciliation")

	ErrUnknownReference = errors.New("unknown transaction reference")
	ErrEventRejected    = errors.New("completion event rejected")
)
