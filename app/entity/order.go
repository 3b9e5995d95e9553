package entity

import "time"

type PaymentMethod int32

const (
	MethodUnspecified PaymentMethod = 0
	MethodCard        PaymentMethod = 1
	MethodPayPal      PaymentMethod = 2
	MethodCrypto      PaymentMethod = 3
)

func (m PaymentMethod) String() string {
	switch m {
	case MethodCard:
		return "card"
	case MethodPayPal:
		return "paypal"
	case MethodCrypto:
		return "crypto"
	default:
		return "unspecified"
	}
}

type PaymentStatus int32

const (
	StatusUnspecified PaymentStatus = 0
	StatusPending     PaymentStatus = 1
	StatusCompleted   PaymentStatus = 2
	StatusFailed      PaymentStatus = 3
)

func (s PaymentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unspecified"
	}
}

// Terminal reports whether no further status transition is permitted.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Order is the durable record of a purchase attempt. TransactionID is the
// reference assigned by the payment gateway at charge creation and is unique
// across orders; AmountCents is captured at creation and never changes.
type Order struct {
	ID uint64

	CustomerID uint64
	ProductID  uint64

	PaymentMethod PaymentMethod
	Status        PaymentStatus

	AmountCents int64
	Currency    string

	TransactionID string
	PayerURL      string

	CreatedAt   time.Time
	CompletedAt *time.Time
}
